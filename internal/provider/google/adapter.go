// Package google implements provider.Adapter against Gemini's stateful chat
// session, grounded on the teacher's internal/llm/google client's content
// adaptation/response extraction, reshaped around genai.Client.Chats.Create
// (matching create_chat in the original engine/providers/google.py) instead
// of the teacher's own stateless Models.GenerateContent call, since the
// adapter contract here must hide Google's statefulness behind the same
// Send signature the other two providers use (§4.D "Google's chat is
// stateful").
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"maestro/internal/provider"
	"maestro/internal/tools"
)

// Adapter wraps a genai.Client; each Send call creates a fresh *genai.Chat
// seeded with every history entry but the last, then sends the final user
// turn through it -- this is what lets the adapter accept the same
// stateless-looking Send(history, ...) signature the other two providers
// use while still exercising Gemini's stateful chat object underneath.
type Adapter struct {
	client *genai.Client
	model  string
}

// New builds an Adapter for the given API key/model, optionally against a
// custom base URL/http.Client (used by tests).
func New(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*Adapter, error) {
	cfg := &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(baseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &Adapter{client: client, model: model}, nil
}

// BuildSchemas translates the registry's neutral schemas into a Gemini tool
// declaration list.
func (a *Adapter) BuildSchemas(schemas []tools.Schema) any {
	decls, _ := adaptTools(schemas)
	return decls
}

// Send runs the tool-use loop against Gemini until a reply carries no more
// function calls (§4.D).
func (a *Adapter) Send(ctx context.Context, history []provider.Message, systemPrompt string, reg *tools.Registry) (provider.Result, error) {
	if len(history) == 0 {
		return provider.Result{}, fmt.Errorf("google adapter: history must include at least one user turn")
	}

	seed := toContents(history[:len(history)-1])
	last := history[len(history)-1]

	decls, toolCfg := adaptTools(reg.Schemas())
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		cfg.ToolConfig = toolCfg
	}

	chat, err := a.client.Chats.Create(ctx, a.model, cfg, seed)
	if err != nil {
		return provider.Result{}, fmt.Errorf("google create chat: %w", err)
	}

	nextParts := []*genai.Part{{Text: last.Content}}
	var markers []string

	for {
		resp, err := chat.SendMessage(ctx, partsToArgs(nextParts)...)
		if err != nil {
			return provider.Result{}, fmt.Errorf("google send message: %w", err)
		}

		text, calls := extractResponse(resp)
		if len(calls) == 0 {
			composed := provider.ComposeAssistantTurn(markers, text)
			return provider.Result{
				History:   append(append([]provider.Message{}, history...), provider.Message{Role: "assistant", Content: composed}),
				FinalText: text,
			}, nil
		}

		nextParts = nil
		for _, call := range calls {
			_, flat := provider.RunTool(ctx, reg, call)
			markers = append(markers, provider.Marker(call.Name, call.Args, flat))
			nextParts = append(nextParts, genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": flat}))
		}
	}
}

func partsToArgs(parts []*genai.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, *p)
	}
	return out
}

func adaptTools(schemas []tools.Schema) ([]*genai.FunctionDeclaration, *genai.ToolConfig) {
	if len(schemas) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  jsonSchemaToGenai(provider.JSONSchemaParams(s.Params)),
		})
	}
	cfg := &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}}
	return decls, cfg
}

// jsonSchemaToGenai converts the generic JSON-Schema map provider.JSONSchemaParams
// produces into genai's typed Schema, the dialect Gemini's SDK requires in
// place of a raw map (§4.D "Parameter schema translation").
func jsonSchemaToGenai(m map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}
	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = map[string]*genai.Schema{}
		for name, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			schema.Properties[name] = &genai.Schema{Type: genaiType(prop["type"])}
		}
	}
	if req, ok := m["required"].([]string); ok {
		schema.Required = req
	}
	return schema
}

func genaiType(t any) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func toContents(history []provider.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if strings.ToLower(m.Role) == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func extractResponse(resp *genai.GenerateContentResponse) (string, []provider.ToolCall) {
	var text strings.Builder
	var calls []provider.ToolCall
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, provider.ToolCall{
				ID:   part.FunctionCall.Name,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return text.String(), calls
}
