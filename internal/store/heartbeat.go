package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PageVisit tracks how many times the heartbeat has investigated a page and
// when it last did so.
type PageVisit struct {
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}

// HeartbeatState is the heartbeat scheduler's persistent state, one row per
// project (spec.md leaves the storage substrate open between "a file or a
// row"; this store keeps it relational like everything else).
type HeartbeatState struct {
	ProjectID         string
	LastHeartbeat     *time.Time
	BoredomStreak     int
	PagesVisited      map[string]PageVisit
	LastScheduleCheck *time.Time
}

// GetHeartbeatState fetches the heartbeat row for a project.
func (s *Store) GetHeartbeatState(ctx context.Context, projectID string) (HeartbeatState, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT project_id, last_heartbeat, boredom_streak, pages_visited, last_schedule_check
		FROM heartbeat_state WHERE project_id = ?`), projectID)
	var hs HeartbeatState
	var pagesJSON string
	if err := row.Scan(&hs.ProjectID, &hs.LastHeartbeat, &hs.BoredomStreak, &pagesJSON, &hs.LastScheduleCheck); err != nil {
		if err == sql.ErrNoRows {
			return HeartbeatState{}, PrecondError("no heartbeat state for project")
		}
		return HeartbeatState{}, fmt.Errorf("fetching heartbeat state: %w", err)
	}
	hs.PagesVisited = map[string]PageVisit{}
	if pagesJSON != "" {
		if err := json.Unmarshal([]byte(pagesJSON), &hs.PagesVisited); err != nil {
			return HeartbeatState{}, fmt.Errorf("decoding pages_visited: %w", err)
		}
	}
	return hs, nil
}

// SaveHeartbeatState persists the heartbeat row wholesale.
func (s *Store) SaveHeartbeatState(ctx context.Context, hs HeartbeatState) error {
	payload, err := json.Marshal(hs.PagesVisited)
	if err != nil {
		return fmt.Errorf("encoding pages_visited: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`
			UPDATE heartbeat_state SET last_heartbeat = ?, boredom_streak = ?, pages_visited = ?, last_schedule_check = ?
			WHERE project_id = ?`),
			hs.LastHeartbeat, hs.BoredomStreak, string(payload), hs.LastScheduleCheck, hs.ProjectID)
		if err != nil {
			return fmt.Errorf("saving heartbeat state: %w", err)
		}
		return nil
	})
}
