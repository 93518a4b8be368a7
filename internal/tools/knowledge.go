package tools

import (
	"context"
	"encoding/json"

	"maestro/internal/knowledge"
)

// RegisterKnowledge wires the ten read-only knowledge-query tools against
// kb, grounded on the original tools/knowledge.py fan-in.
func RegisterKnowledge(r *Registry, kb *knowledge.Store) {
	r.Register(Tool{
		Schema: Schema{Name: "list_disciplines", Description: "List all disciplines in the project"},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			return jsonText(kb.Disciplines())
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "list_pages",
			Description: "List all pages, optionally filtered by discipline",
			Params:      []Param{{Name: "discipline", Type: "string", Description: "Filter by discipline name"}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			return jsonText(kb.ListPages(optString(args, "discipline")))
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "get_sheet_summary",
			Description: "Get the superintendent briefing for a page",
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
			summary := page.SheetReflection
			if summary == "" {
				summary = "No summary available"
			}
			return TextResult{Text: summary}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "get_sheet_index",
			Description: "Get the searchable index for a page (keywords, materials, cross-refs)",
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
			return jsonText(page.Index)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "list_regions",
			Description: "List all detail regions on a page",
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
			type regionRow struct {
				ID           string `json:"id"`
				Type         string `json:"type"`
				Label        string `json:"label"`
				DetailNumber string `json:"detail_number"`
				HasPass2     bool   `json:"has_pass2"`
			}
			rows := make([]regionRow, 0, len(page.Regions))
			for _, rg := range page.Regions {
				rows = append(rows, regionRow{rg.ID, rg.Type, rg.Label, rg.DetailNumber, page.HasPass2(rg.ID)})
			}
			return jsonText(rows)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "get_region_detail",
			Description: "Get the deep technical brief for a region/pointer",
			Params: []Param{
				{Name: "page_name", Type: "string", Required: true},
				{Name: "region_id", Type: "string", Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			name, err := argString(args, "page_name")
			if err != nil {
				return nil, err
			}
			regionID, err := argString(args, "region_id")
			if err != nil {
				return nil, err
			}
			resolved, perr := resolvePageOrPrecond(kb, name)
			if perr != nil {
				return *perr, nil
			}
			page, _ := kb.Page(resolved)
			pointer, ok := page.Pointers[regionID]
			if !ok {
				return PreconditionError{Message: "region " + regionID + " not found on " + resolved + ". Use list_regions() to see available regions."}, nil
			}
			content := pointer.Content
			if content == "" {
				content = "No detail available"
			}
			return TextResult{Text: content}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "search",
			Description: "Search all pages and pointers for a keyword, material, or term",
			Params:      []Param{{Name: "query", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			q, err := argString(args, "query")
			if err != nil {
				return nil, err
			}
			results := kb.Search(q)
			if len(results) == 0 {
				return TextResult{Text: "No results for '" + q + "'"}, nil
			}
			return jsonText(results)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "find_cross_references",
			Description: "Find what sheets reference a page and what it references",
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
			from, to, ferr := kb.FindCrossReferences(resolved)
			if ferr != nil {
				return PreconditionError{Message: ferr.Error()}, nil
			}
			return jsonText(map[string]any{
				"references_from_this_page": from,
				"pages_that_reference_this": to,
			})
		},
	})

	r.Register(Tool{
		Schema: Schema{Name: "list_modifications", Description: "List all install/demolish/protect items across the project"},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			return jsonText(kb.ListModifications())
		},
	})

	r.Register(Tool{
		Schema: Schema{Name: "check_gaps", Description: "Find broken cross-references and regions missing deep analysis"},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			gaps := kb.CheckGaps()
			if len(gaps) == 0 {
				return TextResult{Text: "No gaps found"}, nil
			}
			return jsonText(gaps)
		},
	})
}

// resolvePageOrPrecond resolves a user-supplied page token, returning a
// ready-to-emit PreconditionError result when it fails to match exactly
// one page (ambiguous or not found), per §4.B.
func resolvePageOrPrecond(kb *knowledge.Store, token string) (string, *Result) {
	resolved, err := kb.Resolve(token)
	if err == nil {
		return resolved, nil
	}
	var pr Result
	switch e := err.(type) {
	case knowledge.ErrAmbiguous:
		pr = PreconditionError{Message: e.Error()}
	case knowledge.ErrNotFound:
		pr = PreconditionError{Message: e.Error()}
	default:
		pr = PreconditionError{Message: err.Error()}
	}
	return "", &pr
}

func jsonText(v any) (Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return TextResult{Text: string(b)}, nil
}
