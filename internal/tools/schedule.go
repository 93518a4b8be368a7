package tools

import (
	"context"

	"maestro/internal/store"
)

// RegisterSchedule wires the schedule category over st, scoped to projectID.
func RegisterSchedule(r *Registry, st *store.Store, projectID string) {
	r.Register(Tool{
		Schema: Schema{
			Name:        "add_event",
			Description: "Add a schedule event",
			Params: []Param{
				{Name: "title", Type: "string", Required: true},
				{Name: "start_date", Type: "string", Required: true, Description: "YYYY-MM-DD"},
				{Name: "end_date", Type: "string", Description: "YYYY-MM-DD, defaults to start_date"},
				{Name: "event_type", Type: "string"},
				{Name: "notes", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			title, err := argString(args, "title")
			if err != nil {
				return nil, err
			}
			start, err := argString(args, "start_date")
			if err != nil {
				return nil, err
			}
			e, eerr := st.AddEvent(ctx, projectID, title, start, optString(args, "end_date"), optString(args, "event_type"), optString(args, "notes"))
			if pe, ok := eerr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if eerr != nil {
				return nil, eerr
			}
			return jsonText(e)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "get_event",
			Description: "Get a schedule event by id",
			Params:      []Param{{Name: "event_id", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			id, err := argString(args, "event_id")
			if err != nil {
				return nil, err
			}
			e, gerr := st.GetEvent(ctx, id)
			if pe, ok := gerr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if gerr != nil {
				return nil, gerr
			}
			return jsonText(e)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "list_events",
			Description: "List schedule events, optionally filtered by date range and type",
			Params: []Param{
				{Name: "from_date", Type: "string"},
				{Name: "to_date", Type: "string"},
				{Name: "event_type", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			events, lerr := st.ListEvents(ctx, projectID, store.ListEventsFilter{
				FromDate:  optString(args, "from_date"),
				ToDate:    optString(args, "to_date"),
				EventType: optString(args, "event_type"),
			})
			if lerr != nil {
				return nil, lerr
			}
			return jsonText(events)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "upcoming",
			Description: "List events starting within the next N days",
			Params:      []Param{{Name: "days", Type: "number", Description: "defaults to 14"}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			events, uerr := st.UpcomingEvents(ctx, projectID, optInt(args, "days", 14))
			if uerr != nil {
				return nil, uerr
			}
			return jsonText(events)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "update_event",
			Description: "Update fields on an existing schedule event",
			Params: []Param{
				{Name: "event_id", Type: "string", Required: true},
				{Name: "title", Type: "string"},
				{Name: "start_date", Type: "string"},
				{Name: "end_date", Type: "string"},
				{Name: "event_type", Type: "string"},
				{Name: "notes", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			id, err := argString(args, "event_id")
			if err != nil {
				return nil, err
			}
			patch := store.EventUpdate{
				Title: optStringPtr(args, "title"),
				Start: optStringPtr(args, "start_date"),
				End:   optStringPtr(args, "end_date"),
				Type:  optStringPtr(args, "event_type"),
				Notes: optStringPtr(args, "notes"),
			}
			e, uerr := st.UpdateEvent(ctx, id, patch)
			if pe, ok := uerr.(store.PrecondError); ok {
				return PreconditionError{Message: pe.Error()}, nil
			}
			if uerr != nil {
				return nil, uerr
			}
			return jsonText(e)
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "remove_event",
			Description: "Remove a schedule event",
			Params:      []Param{{Name: "event_id", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			id, err := argString(args, "event_id")
			if err != nil {
				return nil, err
			}
			if rerr := st.RemoveEvent(ctx, id); rerr != nil {
				if pe, ok := rerr.(store.PrecondError); ok {
					return PreconditionError{Message: pe.Error()}, nil
				}
				return nil, rerr
			}
			return TextResult{Text: "removed event " + id}, nil
		},
	})
}
