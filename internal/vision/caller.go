package vision

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

// Caller asks a vision model to reason about a page image against a mission
// and returns its execution trace for extractBBoxesFromTrace to parse. A
// function type (not an interface) so a test can swap in a canned trace
// without a fake client.
type Caller func(ctx context.Context, imageData []byte, mission, pageName string) (trace []TraceEntry, summary string, err error)

// GeminiCaller wraps a genai.Client configured with code execution enabled,
// grounded on the same Models.GenerateContent + Parts shape as
// internal/provider/google's adaptTools/extractResponse, reused here instead
// of the chat-session path since a highlight call is always a single turn.
type GeminiCaller struct {
	client *genai.Client
	model  string
}

// NewGeminiCaller builds a GeminiCaller for the given API key/model.
func NewGeminiCaller(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiCaller, error) {
	cfg := &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init vision client: %w", err)
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	return &GeminiCaller{client: client, model: model}, nil
}

// Call sends the page image and mission, asking the model to reason about
// pixel rectangles via code execution, and collects its trace.
func (c *GeminiCaller) Call(ctx context.Context, imageData []byte, mission, pageName string) ([]TraceEntry, string, error) {
	prompt := fmt.Sprintf(
		"You are locating something on a construction plan page.\n\nPAGE: %s\nMISSION: %s\n\n"+
			"Use code execution to reason about pixel coordinates. Print the bounding rectangle(s) of "+
			"what the mission describes as (x1, y1, x2, y2) tuples in pixel coordinates of the supplied "+
			"image. Keep your response brief.",
		pageName, mission,
	)

	content := &genai.Content{Parts: []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageData}},
		{Text: prompt},
	}}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
		Tools:       []*genai.Tool{{CodeExecution: &genai.ToolCodeExecution{}}},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("vision model call: %w", err)
	}

	return collectTrace(resp)
}

func collectTrace(resp *genai.GenerateContentResponse) ([]TraceEntry, string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", nil
	}

	var trace []TraceEntry
	var summary strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			trace = append(trace, TraceEntry{Type: "text", Content: part.Text})
			summary.WriteString(part.Text)
		case part.ExecutableCode != nil:
			trace = append(trace, TraceEntry{Type: "code", Content: part.ExecutableCode.Code})
		case part.CodeExecutionResult != nil:
			trace = append(trace, TraceEntry{Type: "code_result", Content: part.CodeExecutionResult.Output})
		}
	}
	return trace, summary.String(), nil
}
