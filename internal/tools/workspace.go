package tools

import (
	"context"

	"maestro/internal/store"
)

// RegisterWorkspace wires the workspace/highlight category: create, list,
// inspect, and mutate the superintendent's working folders (§4.C).
func RegisterWorkspace(r *Registry, st *store.Store, projectID string) {
	r.Register(Tool{
		Schema: Schema{
			Name:        "create_workspace",
			Description: "Create a new workspace folder to collect pages and notes for a task",
			Params: []Param{
				{Name: "title", Type: "string", Required: true},
				{Name: "description", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			title, err := argString(args, "title")
			if err != nil {
				return nil, err
			}
			w, werr := st.CreateWorkspace(ctx, projectID, title, optString(args, "description"))
			if pe, ok := werr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if werr != nil {
				return nil, werr
			}
			return jsonText(w)
		},
	})

	r.Register(Tool{
		Schema: Schema{Name: "list_workspaces", Description: "List all workspaces in the project"},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			ws, err := st.ListWorkspaces(ctx, projectID)
			if err != nil {
				return nil, err
			}
			return jsonText(ws)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "get_workspace",
			Description: "Get the full contents of a workspace: pages, highlights, and notes",
			Params:      []Param{{Name: "workspace", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			slug, perr, err := resolveWorkspace(ctx, st, projectID, args)
			if err != nil {
				return nil, err
			}
			if perr != nil {
				return *perr, nil
			}
			detail, derr := st.GetWorkspace(ctx, projectID, slug)
			if pe, ok := derr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if derr != nil {
				return nil, derr
			}
			return jsonText(detail)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "add_page",
			Description: "Add a knowledge page to a workspace",
			Params: []Param{
				{Name: "workspace", Type: "string", Required: true},
				{Name: "page_name", Type: "string", Required: true},
				{Name: "description", Type: "string"},
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
			p, aerr := st.AddPage(ctx, projectID, slug, pageName, optString(args, "description"))
			if pe, ok := aerr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if aerr != nil {
				return nil, aerr
			}
			return jsonText(p)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "remove_page",
			Description: "Remove a page from a workspace",
			Params: []Param{
				{Name: "workspace", Type: "string", Required: true},
				{Name: "page_name", Type: "string", Required: true},
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
			if rerr := st.RemovePage(ctx, projectID, slug, pageName); rerr != nil {
				if pe, ok := rerr.(store.PrecondError); ok {
					return PreconditionError{Message: pe.Error()}, nil
				}
				return nil, rerr
			}
			return TextResult{Text: "removed " + pageName + " from " + slug}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "add_description",
			Description: "Set or update the description of a page already in a workspace",
			Params: []Param{
				{Name: "workspace", Type: "string", Required: true},
				{Name: "page_name", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
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
			description, err := argString(args, "description")
			if err != nil {
				return nil, err
			}
			if derr := st.AddDescription(ctx, projectID, slug, pageName, description); derr != nil {
				if pe, ok := derr.(store.PrecondError); ok {
					return PreconditionError{Message: pe.Error()}, nil
				}
				return nil, derr
			}
			return TextResult{Text: "updated description for " + pageName}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "add_note",
			Description: "Attach a free-form note to a workspace",
			Params: []Param{
				{Name: "workspace", Type: "string", Required: true},
				{Name: "text", Type: "string", Required: true},
				{Name: "source", Type: "string"},
				{Name: "source_page", Type: "string"},
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
			text, err := argString(args, "text")
			if err != nil {
				return nil, err
			}
			n, nerr := st.AddNote(ctx, projectID, slug, text, optString(args, "source"), optStringPtr(args, "source_page"))
			if pe, ok := nerr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if nerr != nil {
				return nil, nerr
			}
			return jsonText(n)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "remove_highlight",
			Description: "Remove a highlight by id",
			Params:      []Param{{Name: "highlight_id", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			id, err := argString(args, "highlight_id")
			if err != nil {
				return nil, err
			}
			if rerr := st.RemoveHighlight(ctx, id); rerr != nil {
				if pe, ok := rerr.(store.PrecondError); ok {
					return PreconditionError{Message: pe.Error()}, nil
				}
				return nil, rerr
			}
			return TextResult{Text: "removed highlight " + id}, nil
		},
	})
}

// resolveWorkspace reads the "workspace" argument and resolves it to a slug,
// the common first step of every workspace-scoped tool.
func resolveWorkspace(ctx context.Context, st *store.Store, projectID string, args map[string]any) (string, *Result, error) {
	token, err := argString(args, "workspace")
	if err != nil {
		return "", nil, err
	}
	slug, ok, rerr := st.ResolveWorkspaceSlug(ctx, projectID, token)
	if rerr != nil {
		return "", nil, rerr
	}
	if !ok {
		var pr Result = PreconditionError{Message: "no workspace matching " + token + ". Use list_workspaces() to see available workspaces."}
		return "", &pr, nil
	}
	return slug, nil, nil
}
