package conversation

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// NewGeminiSummarizer builds a Summarizer backed by a cheap one-shot Gemini
// call, grounded on the same genai.Client/GenerateContent shape
// internal/provider/google's Adapter uses, reused here instead of a full
// chat session since compaction is always a single turn with no tools
// (§4.E, ported from the original's _summarize_with_gemini_flash).
func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (Summarizer, error) {
	cfg := &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init summarizer client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, []*genai.Content{
			{Parts: []*genai.Part{{Text: prompt}}},
		}, &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0.2))})
		if err != nil {
			return "", fmt.Errorf("summarizer call: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("summarizer returned no content")
		}
		var out strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			out.WriteString(part.Text)
		}
		return out.String(), nil
	}, nil
}
