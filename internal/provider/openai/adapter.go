// Package openai implements provider.Adapter against the Chat Completions
// API, grounded on the teacher's internal/llm/openai client's non-streaming
// Chat path -- its self-hosted-SSE compatibility, Responses-API branch, and
// raw-HTTP Gemini-via-OpenAI-compat path are out of scope here (§4.D's
// "send" contract has one concrete shape, no self-hosted fallback).
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"maestro/internal/provider"
	"maestro/internal/tools"
)

// Adapter is the stateless OpenAI implementation of provider.Adapter. Tool
// results never carry images: this wire format's tool messages are
// text-only, so a MultimodalResult is always flattened (§4.D "Multimodal
// tool result").
type Adapter struct {
	sdk   sdk.Client
	model string
}

// New builds an Adapter for the given API key/model, optionally against a
// custom base URL.
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
		model = "gpt-4o"
	}
	return &Adapter{sdk: sdk.NewClient(opts...), model: model}
}

// BuildSchemas translates the registry's neutral schemas into OpenAI tool
// params.
func (a *Adapter) BuildSchemas(schemas []tools.Schema) any {
	return adaptSchemas(schemas)
}

// Send runs the tool-use loop until a reply carries no more tool calls
// (§4.D).
func (a *Adapter) Send(ctx context.Context, history []provider.Message, systemPrompt string, reg *tools.Registry) (provider.Result, error) {
	if len(history) == 0 {
		return provider.Result{}, fmt.Errorf("openai adapter: history must include at least one user turn")
	}

	toolDefs := adaptSchemas(reg.Schemas())
	msgs := adaptMessages(systemPrompt, history)
	var markers []string

	for {
		params := sdk.ChatCompletionNewParams{
			Model:    sdk.ChatModel(a.model),
			Messages: msgs,
		}
		if len(toolDefs) > 0 {
			params.Tools = toolDefs
		}

		comp, err := a.sdk.Chat.Completions.New(ctx, params)
		if err != nil {
			return provider.Result{}, fmt.Errorf("openai chat: %w", err)
		}
		if len(comp.Choices) == 0 {
			return provider.Result{}, fmt.Errorf("openai chat: no choices returned")
		}

		msg := comp.Choices[0].Message
		calls := extractToolCalls(msg)
		if len(calls) == 0 {
			composed := provider.ComposeAssistantTurn(markers, msg.Content)
			return provider.Result{
				History:   append(append([]provider.Message{}, history...), provider.Message{Role: "assistant", Content: composed}),
				FinalText: msg.Content,
			}, nil
		}

		msgs = append(msgs, assistantToolCallMessage(msg.Content, calls))
		for _, call := range calls {
			_, flat := provider.RunTool(ctx, reg, call)
			markers = append(markers, provider.Marker(call.Name, call.Args, flat))
			msgs = append(msgs, sdk.ToolMessage(flat, call.ID))
		}
	}
}

func adaptSchemas(schemas []tools.Schema) []sdk.ChatCompletionToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        s.Name,
			Description: sdk.String(s.Description),
			Parameters:  provider.JSONSchemaParams(s.Params),
		}))
	}
	return out
}

func adaptMessages(systemPrompt string, history []provider.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, sdk.SystemMessage(systemPrompt))
	}
	for _, m := range history {
		switch strings.ToLower(m.Role) {
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

// assistantToolCallMessage re-renders the model's tool-call turn as a
// request param so it can be echoed back in the next iteration of the loop.
// Stored "assistant" turns are replayed by adaptMessages as plain text, so
// this is the only place a turn carrying tool calls is built.
func assistantToolCallMessage(content string, calls []provider.ToolCall) sdk.ChatCompletionMessageParamUnion {
	if content == "" {
		content = " "
	}
	asst := sdk.ChatCompletionAssistantMessageParam{}
	asst.Content.OfString = sdk.String(content)
	for _, call := range calls {
		args, _ := json.Marshal(call.Args)
		asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(args),
				},
			},
		})
	}
	return sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func extractToolCalls(msg sdk.ChatCompletionMessage) []provider.ToolCall {
	var out []provider.ToolCall
	for _, tc := range msg.ToolCalls {
		switch v := tc.AsAny().(type) {
		case sdk.ChatCompletionMessageFunctionToolCall:
			if strings.TrimSpace(v.Function.Arguments) == "" {
				continue
			}
			out = append(out, provider.ToolCall{ID: v.ID, Name: v.Function.Name, Args: decodeArgs(v.Function.Arguments)})
		case sdk.ChatCompletionMessageCustomToolCall:
			if strings.TrimSpace(v.Custom.Input) == "" {
				continue
			}
			out = append(out, provider.ToolCall{ID: v.ID, Name: v.Custom.Name, Args: decodeArgs(v.Custom.Input)})
		}
	}
	return out
}

func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}
