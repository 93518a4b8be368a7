// Package provider translates Maestro's tool registry and message history
// to and from three concrete LLM wire formats, and owns the tool-use loop
// (§4.D): anthropic, openai, and google each implement Adapter.
package provider

import (
	"context"
	"encoding/json"
	"strings"

	"maestro/internal/tools"
)

// Message is the provider-agnostic history entry the conversation layer
// persists: role is "user" or "assistant"; content is opaque text that may
// embed tool-call/result markers (§4.A).
type Message struct {
	Role    string
	Content string
}

// Result is what one Send call hands back: the history with the new
// assistant turn appended, and that turn's user-facing text in isolation --
// the appended history entry may also carry tool-call/result markers the
// sender never shows a human.
type Result struct {
	History   []Message
	FinalText string
}

// Adapter is the uniform interface the three concrete provider packages
// implement. It owns the tool-use loop internally so the conversation layer
// never has to branch on which provider is active (§4.D, §9 "Multi-provider,
// single thread").
type Adapter interface {
	BuildSchemas(schemas []tools.Schema) any
	Send(ctx context.Context, history []Message, systemPrompt string, reg *tools.Registry) (Result, error)
}

// ToolCall is a provider's native reply decoded into neutral form before the
// loop dispatches to the registry.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// RunTool invokes the named tool against the registry and renders the
// outcome two ways: the structured tools.Result (so an Anthropic-style
// adapter can still pass images through) and its flattened text form (what
// every other adapter's tool-result wire format must carry). A handler
// error becomes the "Tool execution error: <detail>" sentinel so the loop
// can continue instead of failing the turn (§4.D "Errors").
func RunTool(ctx context.Context, reg *tools.Registry, call ToolCall) (tools.Result, string) {
	res, err := reg.Invoke(ctx, call.Name, call.Args)
	if err != nil {
		text := "Tool execution error: " + err.Error()
		return tools.TextResult{Text: text}, text
	}
	return res, FlattenResult(res)
}

// FlattenResult renders any tool Result as plain text, substituting a
// placeholder for image blocks -- the representation openai and google must
// use for tool results since their wire formats forbid images there (§4.D
// "Multimodal tool result").
func FlattenResult(r tools.Result) string {
	switch v := r.(type) {
	case tools.TextResult:
		return v.Text
	case tools.PreconditionError:
		return v.Message
	case tools.MultimodalResult:
		var sb strings.Builder
		for i, b := range v.Blocks {
			if i > 0 {
				sb.WriteString("\n")
			}
			if b.Type == "image" {
				sb.WriteString("[image unavailable for this provider]")
			} else {
				sb.WriteString(b.Text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// JSONSchemaParams translates the registry's engine-neutral parameter list
// into a JSON-Schema object -- the shape all three provider SDKs expect
// somewhere in their tool-declaration types (§4.D "Parameter schema
// translation": engine-native {type, required: bool} per param becomes a
// JSON-Schema object with a top-level required array).
func JSONSchemaParams(params []tools.Param) map[string]any {
	props := map[string]any{}
	var required []string
	for _, p := range params {
		t := p.Type
		if t == "" {
			t = "string"
		}
		prop := map[string]any{"type": t}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Marker renders one tool-call/tool-result pair as the textual form
// embedded in the persisted assistant turn.
func Marker(name string, args map[string]any, resultText string) string {
	b, _ := json.Marshal(args)
	return "[Tool: " + name + "(" + string(b) + ")] -> " + resultText
}

// ComposeAssistantTurn builds the single opaque-text assistant message
// persisted to history for one Send call: any tool-call/result markers
// followed by the final reply text.
func ComposeAssistantTurn(markers []string, finalText string) string {
	if len(markers) == 0 {
		return finalText
	}
	return strings.Join(markers, "\n") + "\n" + finalText
}
