// Package tools is Maestro's uniform tool-use registry: a flat
// name -> Tool map built once per conversation, since several handlers
// close over the live store and project id.
package tools

import "context"

// Param describes one named argument a tool accepts.
type Param struct {
	Name        string
	Type        string // string | number | boolean | array | object
	Description string
	Required    bool
}

// Schema is a tool's wire-agnostic description: name, description, and an
// ordered parameter list. Each provider adapter translates this to its own
// native JSON-Schema dialect.
type Schema struct {
	Name        string
	Description string
	Params      []Param
}

// Result is the sum type every tool handler returns: exactly one of
// TextResult, MultimodalResult, or PreconditionError.
type Result interface {
	isResult()
}

// TextResult is a plain text/JSON value, stringified for the model.
type TextResult struct {
	Text string
}

func (TextResult) isResult() {}

// ContentBlock is one block of a MultimodalResult.
type ContentBlock struct {
	Type string // "image" | "text"
	Text string
	Data []byte
	MIME string
}

// MultimodalResult carries images alongside text. Only the Anthropic
// adapter passes this through as-is; other adapters substitute a textual
// placeholder because their wire protocols forbid image tool results (§4.C).
type MultimodalResult struct {
	Blocks []ContentBlock
}

func (MultimodalResult) isResult() {}

// PreconditionError is a precondition failure surfaced directly to the
// model as tool output text (duplicate slug, unknown workspace, ambiguous
// fuzzy match, and the like) -- never a Go error the adapter loop needs to
// catch specially.
type PreconditionError struct {
	Message string
}

func (PreconditionError) isResult() {}

// Handler invokes one tool with its decoded named arguments. An error
// return is an unexpected failure (not a precondition failure -- those are
// PreconditionError results); the adapter's tool loop converts it to the
// string "Tool execution error: <detail>" so the turn can continue (§4.D).
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool is one entry in the registry.
type Tool struct {
	Schema
	Handler Handler
}

// Registry is the flat name -> Tool catalogue built fresh for each
// conversation (§9 "no file-scope mutable state": several handlers close
// over the live store and project id, so a process-global registry would
// leak one conversation's state into another's).
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, preserving registration order for schema listing.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns every registered tool's Schema, in registration order.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}

// Invoke looks up name and calls its handler, converting an unknown tool
// name into the same "Tool execution error" shape the adapter loop uses
// for handler panics/errors.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t.Handler(ctx, args)
}

// UnknownToolError reports a tool-call for a name that isn't registered.
type UnknownToolError struct{ Name string }

func (e *UnknownToolError) Error() string { return "unknown tool: " + e.Name }
