package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddEvent creates a schedule event. eventType is lowercased on write; if
// end is empty it defaults to start. end must be lexicographically >= start.
func (s *Store) AddEvent(ctx context.Context, projectID, title, start, end, eventType, notes string) (ScheduleEvent, error) {
	if end == "" {
		end = start
	}
	eventType = strings.ToLower(eventType)
	if end < start {
		return ScheduleEvent{}, PrecondError("event end must not precede start")
	}

	e := ScheduleEvent{
		ID: "evt_" + uuid.NewString(), ProjectID: projectID, Title: title,
		Start: start, End: end, Type: eventType, Notes: notes, CreatedAt: now(),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO schedule_events (id, project_id, title, start_date, end_date, event_type, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.ProjectID, e.Title, e.Start, e.End, e.Type, e.Notes, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("adding event: %w", err)
		}
		return nil
	})
	if err != nil {
		return ScheduleEvent{}, err
	}
	s.publish(TypeSchedule, map[string]any{"action": "created", "event_id": e.ID, "title": e.Title})
	return e, nil
}

// GetEvent fetches one schedule event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (ScheduleEvent, error) {
	return s.scanEvent(s.db.QueryRowContext(ctx, s.q(`
		SELECT id, project_id, title, start_date, end_date, event_type, notes, created_at
		FROM schedule_events WHERE id = ?`), eventID))
}

func (s *Store) scanEvent(row *sql.Row) (ScheduleEvent, error) {
	var e ScheduleEvent
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Start, &e.End, &e.Type, &e.Notes, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return ScheduleEvent{}, PrecondError("no such schedule event")
		}
		return ScheduleEvent{}, fmt.Errorf("fetching event: %w", err)
	}
	return e, nil
}

// ListEventsFilter narrows ListEvents; zero values mean "no filter".
type ListEventsFilter struct {
	FromDate  string
	ToDate    string
	EventType string
}

// ListEvents lists schedule events for a project, optionally filtered by
// date range (inclusive, lexicographic on the stored date strings) and type.
func (s *Store) ListEvents(ctx context.Context, projectID string, filter ListEventsFilter) ([]ScheduleEvent, error) {
	query := `SELECT id, project_id, title, start_date, end_date, event_type, notes, created_at
		FROM schedule_events WHERE project_id = ?`
	args := []any{projectID}
	if filter.FromDate != "" {
		query += ` AND end_date >= ?`
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		query += ` AND start_date <= ?`
		args = append(args, filter.ToDate)
	}
	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, strings.ToLower(filter.EventType))
	}
	query += ` ORDER BY start_date ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []ScheduleEvent
	for rows.Next() {
		var e ScheduleEvent
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Start, &e.End, &e.Type, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpcomingEvents returns events starting within the next `days` days
// (inclusive), ordered by start date.
func (s *Store) UpcomingEvents(ctx context.Context, projectID string, days int) ([]ScheduleEvent, error) {
	today := time.Now().UTC().Format("2006-01-02")
	horizon := time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
	return s.ListEvents(ctx, projectID, ListEventsFilter{FromDate: today, ToDate: horizon})
}

// EventUpdate is a sparse patch to a schedule event; nil fields are unchanged.
type EventUpdate struct {
	Title *string
	Start *string
	End   *string
	Type  *string
	Notes *string
}

// UpdateEvent applies a sparse patch to an existing event.
func (s *Store) UpdateEvent(ctx context.Context, eventID string, patch EventUpdate) (ScheduleEvent, error) {
	var result ScheduleEvent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := s.scanEvent(tx.QueryRowContext(ctx, s.q(`
			SELECT id, project_id, title, start_date, end_date, event_type, notes, created_at
			FROM schedule_events WHERE id = ?`), eventID))
		if err != nil {
			return err
		}
		if patch.Title != nil {
			e.Title = *patch.Title
		}
		if patch.Start != nil {
			e.Start = *patch.Start
		}
		if patch.End != nil {
			e.End = *patch.End
		}
		if patch.Type != nil {
			e.Type = strings.ToLower(*patch.Type)
		}
		if patch.Notes != nil {
			e.Notes = *patch.Notes
		}
		if e.End < e.Start {
			return PrecondError("event end must not precede start")
		}
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE schedule_events SET title=?, start_date=?, end_date=?, event_type=?, notes=? WHERE id=?`),
			e.Title, e.Start, e.End, e.Type, e.Notes, e.ID)
		if err != nil {
			return fmt.Errorf("updating event: %w", err)
		}
		result = e
		return nil
	})
	if err != nil {
		return ScheduleEvent{}, err
	}
	s.publish(TypeSchedule, map[string]any{"action": "updated", "event_id": result.ID})
	return result, nil
}

// RemoveEvent deletes a schedule event.
func (s *Store) RemoveEvent(ctx context.Context, eventID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM schedule_events WHERE id = ?`), eventID)
		if err != nil {
			return fmt.Errorf("removing event: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return PrecondError("no such schedule event")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(TypeSchedule, map[string]any{"action": "removed", "event_id": eventID})
	return nil
}
