package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetOrCreateProject is idempotent by name: a second call with the same
// name returns the existing row untouched.
func (s *Store) GetOrCreateProject(ctx context.Context, name, path string) (Project, error) {
	var p Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT id, name, path, created_at FROM projects WHERE name = ?`), name)
		err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("looking up project: %w", err)
		}

		p = Project{ID: uuid.NewString(), Name: name, Path: path, CreatedAt: now()}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO projects (id, name, path, created_at) VALUES (?, ?, ?, ?)`),
			p.ID, p.Name, p.Path, p.CreatedAt); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO message_sequences (project_id, next_id) VALUES (?, 1)`), p.ID); err != nil {
			return fmt.Errorf("initializing message sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO conversation_state (project_id, created_at) VALUES (?, ?)`), p.ID, p.CreatedAt); err != nil {
			return fmt.Errorf("initializing conversation state: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO heartbeat_state (project_id) VALUES (?)`), p.ID); err != nil {
			return fmt.Errorf("initializing heartbeat state: %w", err)
		}
		return nil
	})
	return p, err
}

// GetProject fetches the stored project row (id, name, path, created_at).
// Page/pointer/discipline counts live in the in-memory knowledge index, not
// the relational store, and are not part of the result.
func (s *Store) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, path, created_at FROM projects WHERE id = ?`), projectID)
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Project{}, PrecondError("unknown project")
		}
		return Project{}, fmt.Errorf("fetching project: %w", err)
	}
	return p, nil
}
