package tools

import "context"

// EngineSwitcher performs the actual provider swap; wired in from
// internal/conversation so this package never imports the conversation
// layer directly (it is, after all, what builds the registry).
type EngineSwitcher func(name string) (string, error)

// RegisterControl wires the single control-category tool.
func RegisterControl(r *Registry, switchEngine EngineSwitcher) {
	r.Register(Tool{
		Schema: Schema{
			Name:        "switch_engine",
			Description: "Switch the active provider/model engine for this conversation",
			Params:      []Param{{Name: "name", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			name, err := argString(args, "name")
			if err != nil {
				return nil, err
			}
			confirmation, serr := switchEngine(name)
			if serr != nil {
				return PreconditionError{Message: serr.Error()}, nil
			}
			return TextResult{Text: confirmation}, nil
		},
	})
}
