// Package anthropic implements provider.Adapter against Claude's Messages
// API, grounded on the teacher's internal/llm/anthropic client -- minus the
// streaming, extended-thinking, and prompt-cache machinery that contract
// doesn't call for (§4.D "send" has no streaming counterpart).
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"maestro/internal/provider"
	"maestro/internal/tools"
)

const defaultMaxTokens int64 = 4096

// Adapter is the stateless (client supplies full history every call)
// Anthropic implementation of provider.Adapter. Tool results may carry
// images through untouched, since Claude's tool_result blocks accept them
// (§4.D "Multimodal tool result").
type Adapter struct {
	sdk       sdk.Client
	model     string
	maxTokens int64
}

// New builds an Adapter for the given API key/model, optionally against a
// custom base URL (used by tests and self-hosted-compatible gateways).
func New(apiKey, model, baseURL string, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	if model == "" {
		model = string(sdk.ModelClaude3_7SonnetLatest)
	}
	return &Adapter{sdk: sdk.NewClient(opts...), model: model, maxTokens: defaultMaxTokens}
}

// BuildSchemas translates the registry's neutral schemas into Anthropic tool
// params.
func (a *Adapter) BuildSchemas(schemas []tools.Schema) any {
	return adaptTools(schemas)
}

// Send runs the tool-use loop against Claude until a reply carries no more
// tool-call blocks, returning the final text plus the history with one new
// assistant turn appended (§4.D).
func (a *Adapter) Send(ctx context.Context, history []provider.Message, systemPrompt string, reg *tools.Registry) (provider.Result, error) {
	if len(history) == 0 {
		return provider.Result{}, fmt.Errorf("anthropic adapter: history must include at least one user turn")
	}

	toolDefs := adaptTools(reg.Schemas())
	msgs := adaptMessages(history)
	var markers []string

	for {
		params := sdk.MessageNewParams{
			Model:     sdk.Model(a.model),
			Messages:  msgs,
			MaxTokens: a.maxTokens,
		}
		if systemPrompt != "" {
			params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
		}
		if len(toolDefs) > 0 {
			params.Tools = toolDefs
		}

		resp, err := a.sdk.Messages.New(ctx, params)
		if err != nil {
			return provider.Result{}, fmt.Errorf("anthropic chat: %w", err)
		}

		text, calls, assistantBlocks := extractResponse(resp)
		if len(calls) == 0 {
			composed := provider.ComposeAssistantTurn(markers, text)
			return provider.Result{
				History:   append(append([]provider.Message{}, history...), provider.Message{Role: "assistant", Content: composed}),
				FinalText: text,
			}, nil
		}

		msgs = append(msgs, sdk.NewAssistantMessage(assistantBlocks...))
		var resultBlocks []sdk.ContentBlockParamUnion
		for _, call := range calls {
			res, flat := provider.RunTool(ctx, reg, call)
			markers = append(markers, provider.Marker(call.Name, call.Args, flat))

			if mm, ok := res.(tools.MultimodalResult); ok {
				resultBlocks = append(resultBlocks, sdk.NewToolResultBlock(call.ID, multimodalContent(mm)...))
			} else {
				resultBlocks = append(resultBlocks, sdk.NewToolResultBlock(call.ID, flat))
			}
		}
		msgs = append(msgs, sdk.NewUserMessage(resultBlocks...))
	}
}

func adaptTools(schemas []tools.Schema) []sdk.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		native := provider.JSONSchemaParams(s.Params)
		schema := sdk.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		if props, ok := native["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := native["required"].([]string); ok {
			schema.Required = req
		}
		param := sdk.ToolParam{Name: s.Name, InputSchema: schema}
		if s.Description != "" {
			param.Description = sdk.String(s.Description)
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &param})
	}
	return out
}

func adaptMessages(history []provider.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(history))
	for _, m := range history {
		switch strings.ToLower(m.Role) {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return out
}

// extractResponse walks the response's content blocks, returning the
// concatenated text, any requested tool calls in neutral form, and the
// original blocks re-rendered as assistant-turn content params (needed to
// carry the tool_use blocks forward into the next request in this loop).
func extractResponse(resp *sdk.Message) (string, []provider.ToolCall, []sdk.ContentBlockParamUnion) {
	var text strings.Builder
	var calls []provider.ToolCall
	var blocks []sdk.ContentBlockParamUnion
	idx := 0
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(v.Text)
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case sdk.ToolUseBlock:
			idx++
			id := v.ID
			if id == "" {
				id = fmt.Sprintf("call-%d", idx)
			}
			args := decodeArgs(v.Input)
			calls = append(calls, provider.ToolCall{ID: id, Name: v.Name, Args: args})
			blocks = append(blocks, sdk.NewToolUseBlock(id, args, v.Name))
		}
	}
	return text.String(), calls, blocks
}

func decodeArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func multimodalContent(mm tools.MultimodalResult) []sdk.ToolResultBlockParamContentUnion {
	out := make([]sdk.ToolResultBlockParamContentUnion, 0, len(mm.Blocks))
	for _, b := range mm.Blocks {
		if b.Type == "image" {
			out = append(out, sdk.ToolResultBlockParamContentUnion{
				OfImage: &sdk.ImageBlockParam{
					Source: sdk.ImageBlockParamSourceUnion{
						OfBase64: &sdk.Base64ImageSourceParam{Data: encodeBase64(b.Data), MediaType: mediaType(b.MIME)},
					},
				},
			})
			continue
		}
		out = append(out, sdk.ToolResultBlockParamContentUnion{OfText: &sdk.TextBlockParam{Text: b.Text}})
	}
	return out
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func mediaType(mime string) sdk.Base64ImageSourceMediaType {
	switch mime {
	case "image/png":
		return sdk.Base64ImageSourceMediaTypeImagePNG
	case "image/webp":
		return sdk.Base64ImageSourceMediaTypeImageWebP
	case "image/gif":
		return sdk.Base64ImageSourceMediaTypeImageGIF
	default:
		return sdk.Base64ImageSourceMediaTypeImageJPEG
	}
}
