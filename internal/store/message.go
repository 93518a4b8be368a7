package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// AddMessage appends a message and returns its assigned monotonic id.
// Messages are append-only: there is no update path, only compaction's
// delete-before-cutoff. Emits a "message" event on success.
func (s *Store) AddMessage(ctx context.Context, projectID, role, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT next_id FROM message_sequences WHERE project_id = ?`), projectID)
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("reading message sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE message_sequences SET next_id = ? WHERE project_id = ?`), id+1, projectID); err != nil {
			return fmt.Errorf("advancing message sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
			id, projectID, role, content, now()); err != nil {
			return fmt.Errorf("appending message: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(TypeMessage, map[string]any{"project_id": projectID, "id": id, "role": role})
	return id, nil
}

// GetMessages returns every message for the project in strict id order.
func (s *Store) GetMessages(ctx context.Context, projectID string) ([]Message, error) {
	return s.queryMessages(ctx, s.q(`
		SELECT id, project_id, role, content, created_at FROM messages WHERE project_id = ? ORDER BY id ASC`), projectID)
}

// GetRecentMessages returns the last n messages in id order.
func (s *Store) GetRecentMessages(ctx context.Context, projectID string, n int) ([]Message, error) {
	rows, err := s.queryMessages(ctx, s.q(`
		SELECT id, project_id, role, content, created_at FROM messages WHERE project_id = ?
		ORDER BY id DESC LIMIT ?`), projectID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages reports the number of messages stored for a project.
func (s *Store) CountMessages(ctx context.Context, projectID string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM messages WHERE project_id = ?`), projectID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// DeleteMessagesBefore deletes every message with id < cutoff in its own
// transaction. It does not touch the conversation state; Compact performs
// the delete and the summary update together in one transaction.
func (s *Store) DeleteMessagesBefore(ctx context.Context, projectID string, cutoff int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`DELETE FROM messages WHERE project_id = ? AND id < ?`), projectID, cutoff)
		if err != nil {
			return fmt.Errorf("deleting messages before cutoff: %w", err)
		}
		return nil
	})
}

// Compact runs DeleteMessagesBefore and UpdateConversationState(summary,
// bump_compactions) atomically, per §4.E step 6: an observer must never see
// deleted rows without the new summary, nor vice versa.
func (s *Store) Compact(ctx context.Context, projectID string, cutoff int64, newSummary string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM messages WHERE project_id = ? AND id < ?`), projectID, cutoff); err != nil {
			return fmt.Errorf("deleting messages before cutoff: %w", err)
		}
		if err := s.applyConversationStateUpdate(ctx, tx, projectID, ConversationStateUpdate{
			Summary:         &newSummary,
			BumpCompactions: true,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(TypeCompaction, map[string]any{"project_id": projectID, "cutoff": cutoff})
	return nil
}

// GetConversationState fetches the single per-project conversation row.
func (s *Store) GetConversationState(ctx context.Context, projectID string) (ConversationState, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT project_id, summary, total_exchanges, compactions, last_compaction, created_at
		FROM conversation_state WHERE project_id = ?`), projectID)
	var cs ConversationState
	if err := row.Scan(&cs.ProjectID, &cs.Summary, &cs.TotalExchanges, &cs.Compactions, &cs.LastCompaction, &cs.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return ConversationState{}, PrecondError("no conversation state for project")
		}
		return ConversationState{}, fmt.Errorf("fetching conversation state: %w", err)
	}
	return cs, nil
}

// UpdateConversationState applies a sparse patch to the conversation row.
func (s *Store) UpdateConversationState(ctx context.Context, projectID string, patch ConversationStateUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.applyConversationStateUpdate(ctx, tx, projectID, patch)
	})
}

func (s *Store) applyConversationStateUpdate(ctx context.Context, tx *sql.Tx, projectID string, patch ConversationStateUpdate) error {
	set := "total_exchanges = total_exchanges"
	args := []any{}
	if patch.Summary != nil {
		set += ", summary = ?"
		args = append(args, *patch.Summary)
	}
	if patch.BumpExchanges {
		set += ", total_exchanges = total_exchanges + 1"
	}
	if patch.BumpCompactions {
		set += ", compactions = compactions + 1, last_compaction = ?"
		args = append(args, now())
	}
	args = append(args, projectID)
	_, err := tx.ExecContext(ctx, s.q(fmt.Sprintf(`UPDATE conversation_state SET %s WHERE project_id = ?`, set)), args...)
	if err != nil {
		return fmt.Errorf("updating conversation state: %w", err)
	}
	return nil
}

// LogExperience appends an audit row for a learning-tool invocation.
func (s *Store) LogExperience(ctx context.Context, tool, details string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO experience_log (id, tool, details, created_at) VALUES (?, ?, ?, ?)`),
			uuid.NewString(), tool, details, now())
		if err != nil {
			return fmt.Errorf("logging experience: %w", err)
		}
		return nil
	})
}
