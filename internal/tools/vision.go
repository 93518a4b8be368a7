package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// HighlightDispatcher hands a freshly created pending highlight off to the
// background vision worker (§4.I); wired in from internal/vision so this
// package never imports the worker directly.
type HighlightDispatcher func(highlightID, pageName, mission string)

// RegisterVision wires the two tools that touch page imagery: see_page
// (synchronous, returns the page image inline) and highlight_on_page
// (asynchronous, returns immediately with a pending highlight id).
func RegisterVision(r *Registry, kb *knowledge.Store, st *store.Store, projectID string, dispatch HighlightDispatcher) {
	r.Register(Tool{
		Schema: Schema{
			Name:        "see_page",
			Description: "Look at a page's image directly",
			Params:      []Param{{Name: "page_name", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			name, err := argString(args, "page_name")
			if err != nil {
				return nil, err
			}
			resolved, perr := resolvePageOrPrecond(kb, name)
			if perr != nil {
				return *perr, nil
			}
			page, _ := kb.Page(resolved)
			data, rerr := os.ReadFile(filepath.Join(page.Path, "page.png"))
			if rerr != nil {
				return PreconditionError{Message: fmt.Sprintf("page image for %q is unavailable: %v", resolved, rerr)}, nil
			}
			return MultimodalResult{Blocks: []ContentBlock{
				{Type: "text", Text: "Page: " + resolved},
				{Type: "image", Data: data, MIME: "image/jpeg"},
			}}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "highlight_on_page",
			Description: "Ask the vision worker to draw boxes on a page for a described target, delivered later over the event feed",
			Params: []Param{
				{Name: "workspace", Type: "string", Required: true},
				{Name: "page_name", Type: "string", Required: true},
				{Name: "mission", Type: "string", Required: true, Description: "what to find and box, in plain language"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			slug, perr, err := resolveWorkspace(ctx, st, projectID, args)
			if err != nil {
				return nil, err
			}
			if perr != nil {
				return *perr, nil
			}
			pageName, err := argString(args, "page_name")
			if err != nil {
				return nil, err
			}
			resolved, krerr := resolvePageOrPrecond(kb, pageName)
			if krerr != nil {
				return *krerr, nil
			}
			mission, err := argString(args, "mission")
			if err != nil {
				return nil, err
			}
			h, herr := st.AddHighlight(ctx, projectID, slug, resolved, mission)
			if pe, ok := herr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if herr != nil {
				return nil, herr
			}
			if dispatch != nil {
				dispatch(h.ID, resolved, mission)
			}
			return TextResult{Text: "Highlight request " + h.ID + " queued for " + resolved + "; result will arrive on the event feed."}, nil
		},
	})
}
