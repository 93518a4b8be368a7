package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateWorkspace derives the slug once from title and creates the row. If
// the derived slug already exists for the project, the existing row is
// returned unchanged -- title/description on the call are not applied to it.
func (s *Store) CreateWorkspace(ctx context.Context, projectID, title, description string) (Workspace, error) {
	slug := slugify(title)
	if slug == "" {
		return Workspace{}, PrecondError("workspace title must contain at least one alphanumeric character")
	}

	var result Workspace
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err == nil {
			result = existing
			return nil
		}
		if _, ok := err.(PrecondError); !ok {
			return err
		}

		ts := now()
		result = Workspace{
			ID: uuid.NewString(), ProjectID: projectID, Slug: slug,
			Title: title, Description: description, Status: "active",
			CreatedAt: ts, UpdatedAt: ts,
		}
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO workspaces (id, project_id, slug, title, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			result.ID, result.ProjectID, result.Slug, result.Title, result.Description, result.Status, result.CreatedAt, result.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating workspace: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return Workspace{}, err
	}
	if created {
		s.publish(TypeWorkspace, map[string]any{"action": "created", "workspace": result.Slug, "title": result.Title})
	}
	return result, nil
}

func (s *Store) getWorkspaceBySlug(ctx context.Context, tx *sql.Tx, projectID, slug string) (Workspace, error) {
	row := tx.QueryRowContext(ctx, s.q(`
		SELECT id, project_id, slug, title, description, status, created_at, updated_at
		FROM workspaces WHERE project_id = ? AND slug = ?`), projectID, slug)
	var w Workspace
	if err := row.Scan(&w.ID, &w.ProjectID, &w.Slug, &w.Title, &w.Description, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Workspace{}, PrecondError(fmt.Sprintf("no workspace with slug %q", slug))
		}
		return Workspace{}, fmt.Errorf("fetching workspace: %w", err)
	}
	return w, nil
}

// ResolveWorkspaceSlug tries, in order: exact slug match, slugified query,
// then a case-insensitive title match. Returns ("", false, nil) on zero
// matches -- this is a lookup helper, not itself a precondition failure.
func (s *Store) ResolveWorkspaceSlug(ctx context.Context, projectID, query string) (string, bool, error) {
	if slug, ok, err := s.slugExists(ctx, projectID, query); err != nil || ok {
		return slug, ok, err
	}
	if normalized := slugify(query); normalized != query {
		if slug, ok, err := s.slugExists(ctx, projectID, normalized); err != nil || ok {
			return slug, ok, err
		}
	}

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT slug FROM workspaces WHERE project_id = ? AND LOWER(title) = LOWER(?)`), projectID, query)
	var slug string
	switch err := row.Scan(&slug); err {
	case nil:
		return slug, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("resolving workspace slug: %w", err)
	}
}

func (s *Store) slugExists(ctx context.Context, projectID, slug string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT slug FROM workspaces WHERE project_id = ? AND slug = ?`), projectID, slug)
	var found string
	switch err := row.Scan(&found); err {
	case nil:
		return found, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("checking workspace slug: %w", err)
	}
}

// ListWorkspaces lists every workspace in the project, most recently
// updated first.
func (s *Store) ListWorkspaces(ctx context.Context, projectID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, project_id, slug, title, description, status, created_at, updated_at
		FROM workspaces WHERE project_id = ? ORDER BY updated_at DESC`), projectID)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Slug, &w.Title, &w.Description, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWorkspace returns the full payload for a workspace: metadata, pages
// (each with its highlights), and notes.
func (s *Store) GetWorkspace(ctx context.Context, projectID, slug string) (WorkspaceDetail, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, project_id, slug, title, description, status, created_at, updated_at
		FROM workspaces WHERE project_id = ? AND slug = ?`), projectID, slug)
	var d WorkspaceDetail
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Slug, &d.Title, &d.Description, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return WorkspaceDetail{}, PrecondError(fmt.Sprintf("no workspace with slug %q", slug))
		}
		return WorkspaceDetail{}, fmt.Errorf("fetching workspace: %w", err)
	}

	pageRows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, workspace_id, page_name, description, added_at
		FROM workspace_pages WHERE workspace_id = ? ORDER BY added_at ASC`), d.ID)
	if err != nil {
		return WorkspaceDetail{}, fmt.Errorf("listing workspace pages: %w", err)
	}
	defer pageRows.Close()
	for pageRows.Next() {
		var pd WorkspacePageDetail
		if err := pageRows.Scan(&pd.ID, &pd.WorkspaceID, &pd.PageName, &pd.Description, &pd.AddedAt); err != nil {
			return WorkspaceDetail{}, fmt.Errorf("scanning workspace page: %w", err)
		}
		d.Pages = append(d.Pages, pd)
	}
	if err := pageRows.Err(); err != nil {
		return WorkspaceDetail{}, err
	}

	for i := range d.Pages {
		highlights, err := s.listHighlights(ctx, d.Pages[i].ID)
		if err != nil {
			return WorkspaceDetail{}, err
		}
		d.Pages[i].Highlights = highlights
	}

	notes, err := s.ListNotes(ctx, d.ID)
	if err != nil {
		return WorkspaceDetail{}, err
	}
	d.Notes = notes

	return d, nil
}

// ListNotes returns every note attached to a workspace, oldest first.
func (s *Store) ListNotes(ctx context.Context, workspaceID string) ([]WorkspaceNote, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, workspace_id, text, source, source_page, added_at
		FROM workspace_notes WHERE workspace_id = ? ORDER BY added_at ASC`), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var out []WorkspaceNote
	for rows.Next() {
		var n WorkspaceNote
		if err := rows.Scan(&n.ID, &n.WorkspaceID, &n.Text, &n.Source, &n.SourcePage, &n.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AddPage adds pageName to the workspace identified by slug. If the page is
// already present the existing row is returned unchanged (pair uniqueness
// makes this operation naturally idempotent rather than an error).
func (s *Store) AddPage(ctx context.Context, projectID, slug, pageName, description string) (WorkspacePage, error) {
	var result WorkspacePage
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, s.q(`
			SELECT id, workspace_id, page_name, description, added_at
			FROM workspace_pages WHERE workspace_id = ? AND page_name = ?`), w.ID, pageName)
		err = row.Scan(&result.ID, &result.WorkspaceID, &result.PageName, &result.Description, &result.AddedAt)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking existing page: %w", err)
		}

		result = WorkspacePage{ID: uuid.NewString(), WorkspaceID: w.ID, PageName: pageName, Description: description, AddedAt: now()}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO workspace_pages (id, workspace_id, page_name, description, added_at) VALUES (?, ?, ?, ?, ?)`),
			result.ID, result.WorkspaceID, result.PageName, result.Description, result.AddedAt); err != nil {
			return fmt.Errorf("adding page: %w", err)
		}
		if err := s.touchWorkspace(ctx, tx, w.ID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return WorkspacePage{}, err
	}
	if created {
		s.publish(TypeWorkspace, map[string]any{"action": "page_added", "workspace": slug, "page": pageName})
	}
	return result, nil
}

// RemovePage removes pageName from the workspace, cascading its highlights.
func (s *Store) RemovePage(ctx context.Context, projectID, slug, pageName string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM workspace_pages WHERE workspace_id = ? AND page_name = ?`), w.ID, pageName)
		if err != nil {
			return fmt.Errorf("removing page: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return PrecondError(fmt.Sprintf("page %q is not in workspace %q", pageName, slug))
		}
		return s.touchWorkspace(ctx, tx, w.ID)
	})
	if err != nil {
		return err
	}
	s.publish(TypeWorkspace, map[string]any{"action": "page_removed", "workspace": slug, "page": pageName})
	return nil
}

// AddDescription sets the description on an already-added workspace page.
func (s *Store) AddDescription(ctx context.Context, projectID, slug, pageName, description string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE workspace_pages SET description = ? WHERE workspace_id = ? AND page_name = ?`),
			description, w.ID, pageName)
		if err != nil {
			return fmt.Errorf("updating page description: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return PrecondError(fmt.Sprintf("page %q is not in workspace %q", pageName, slug))
		}
		return s.touchWorkspace(ctx, tx, w.ID)
	})
	if err != nil {
		return err
	}
	s.publish(TypeWorkspace, map[string]any{"action": "description_added", "workspace": slug, "page": pageName})
	return nil
}

// AddNote attaches a note to a workspace.
func (s *Store) AddNote(ctx context.Context, projectID, slug, text, source string, sourcePage *string) (WorkspaceNote, error) {
	if strings.TrimSpace(text) == "" {
		return WorkspaceNote{}, PrecondError("note text must not be empty")
	}
	if source == "" {
		source = "maestro"
	}
	var n WorkspaceNote
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err != nil {
			return err
		}
		n = WorkspaceNote{ID: uuid.NewString(), WorkspaceID: w.ID, Text: text, Source: source, SourcePage: sourcePage, AddedAt: now()}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO workspace_notes (id, workspace_id, text, source, source_page, added_at) VALUES (?, ?, ?, ?, ?, ?)`),
			n.ID, n.WorkspaceID, n.Text, n.Source, n.SourcePage, n.AddedAt); err != nil {
			return fmt.Errorf("adding note: %w", err)
		}
		return s.touchWorkspace(ctx, tx, w.ID)
	})
	if err != nil {
		return WorkspaceNote{}, err
	}
	s.publish(TypeWorkspace, map[string]any{"action": "note_added", "workspace": slug})
	return n, nil
}

func (s *Store) touchWorkspace(ctx context.Context, tx *sql.Tx, workspaceID string) error {
	_, err := tx.ExecContext(ctx, s.q(`UPDATE workspaces SET updated_at = ? WHERE id = ?`), now(), workspaceID)
	if err != nil {
		return fmt.Errorf("touching workspace: %w", err)
	}
	return nil
}

// AddHighlight creates a pending WorkspaceHighlight for (slug, pageName).
func (s *Store) AddHighlight(ctx context.Context, projectID, slug, pageName, mission string) (WorkspaceHighlight, error) {
	var h WorkspaceHighlight
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := s.getWorkspaceBySlug(ctx, tx, projectID, slug)
		if err != nil {
			return err
		}
		var pageID string
		row := tx.QueryRowContext(ctx, s.q(`SELECT id FROM workspace_pages WHERE workspace_id = ? AND page_name = ?`), w.ID, pageName)
		if err := row.Scan(&pageID); err != nil {
			if err == sql.ErrNoRows {
				return PrecondError(fmt.Sprintf("page %q is not in workspace %q", pageName, slug))
			}
			return fmt.Errorf("looking up workspace page: %w", err)
		}

		h = WorkspaceHighlight{ID: uuid.NewString(), WorkspacePageID: pageID, Mission: mission, Status: HighlightPending, CreatedAt: now()}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO workspace_highlights (id, workspace_page_id, mission, status, bboxes, created_at)
			VALUES (?, ?, ?, ?, '[]', ?)`), h.ID, h.WorkspacePageID, h.Mission, h.Status, h.CreatedAt); err != nil {
			return fmt.Errorf("adding highlight: %w", err)
		}
		return nil
	})
	return h, err
}

// GetHighlight fetches one highlight by id.
func (s *Store) GetHighlight(ctx context.Context, highlightID string) (WorkspaceHighlight, error) {
	return s.getHighlight(ctx, s.db, highlightID)
}

type queryRowContexter interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getHighlight(ctx context.Context, q queryRowContexter, highlightID string) (WorkspaceHighlight, error) {
	row := q.QueryRowContext(ctx, s.q(`
		SELECT id, workspace_page_id, mission, status, bboxes, created_at FROM workspace_highlights WHERE id = ?`), highlightID)
	var h WorkspaceHighlight
	var bboxJSON string
	if err := row.Scan(&h.ID, &h.WorkspacePageID, &h.Mission, &h.Status, &bboxJSON, &h.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return WorkspaceHighlight{}, PrecondError(fmt.Sprintf("no highlight with id %q", highlightID))
		}
		return WorkspaceHighlight{}, fmt.Errorf("fetching highlight: %w", err)
	}
	boxes, err := decodeBBoxes(bboxJSON)
	if err != nil {
		return WorkspaceHighlight{}, err
	}
	h.BBoxes = boxes
	return h, nil
}

func (s *Store) listHighlights(ctx context.Context, workspacePageID string) ([]WorkspaceHighlight, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, workspace_page_id, mission, status, bboxes, created_at
		FROM workspace_highlights WHERE workspace_page_id = ? ORDER BY created_at ASC`), workspacePageID)
	if err != nil {
		return nil, fmt.Errorf("listing highlights: %w", err)
	}
	defer rows.Close()

	var out []WorkspaceHighlight
	for rows.Next() {
		var h WorkspaceHighlight
		var bboxJSON string
		if err := rows.Scan(&h.ID, &h.WorkspacePageID, &h.Mission, &h.Status, &bboxJSON, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning highlight: %w", err)
		}
		boxes, err := decodeBBoxes(bboxJSON)
		if err != nil {
			return nil, err
		}
		h.BBoxes = boxes
		out = append(out, h)
	}
	return out, rows.Err()
}

// CompleteHighlight transitions a pending highlight to complete with the
// given boxes, deduplicated at 4-decimal precision. No-op error if the
// highlight is not pending: terminal states never transition further.
func (s *Store) CompleteHighlight(ctx context.Context, highlightID string, boxes []BBox) error {
	deduped := dedupeBBoxes(boxes)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		h, err := s.getHighlight(ctx, tx, highlightID)
		if err != nil {
			return err
		}
		if h.Status != HighlightPending {
			return PrecondError(fmt.Sprintf("highlight %q is not pending (status=%s)", highlightID, h.Status))
		}
		payload, err := encodeBBoxes(deduped)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE workspace_highlights SET status = ?, bboxes = ? WHERE id = ?`),
			HighlightComplete, payload, highlightID)
		if err != nil {
			return fmt.Errorf("completing highlight: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(TypePageHighlightComplete, map[string]any{"highlight_id": highlightID, "boxes": len(deduped)})
	return nil
}

// FailHighlight transitions a pending highlight to failed.
func (s *Store) FailHighlight(ctx context.Context, highlightID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		h, err := s.getHighlight(ctx, tx, highlightID)
		if err != nil {
			return err
		}
		if h.Status != HighlightPending {
			return PrecondError(fmt.Sprintf("highlight %q is not pending (status=%s)", highlightID, h.Status))
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE workspace_highlights SET status = ? WHERE id = ?`), HighlightFailed, highlightID)
		if err != nil {
			return fmt.Errorf("failing highlight: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(TypePageHighlightFailed, map[string]any{"highlight_id": highlightID})
	return nil
}

// RemoveHighlight deletes a highlight outright (any status).
func (s *Store) RemoveHighlight(ctx context.Context, highlightID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM workspace_highlights WHERE id = ?`), highlightID)
		if err != nil {
			return fmt.Errorf("removing highlight: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return PrecondError(fmt.Sprintf("no highlight with id %q", highlightID))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(TypeWorkspace, map[string]any{"action": "highlight_removed", "highlight_id": highlightID})
	return nil
}

func encodeBBoxes(boxes []BBox) (string, error) {
	if boxes == nil {
		boxes = []BBox{}
	}
	b, err := json.Marshal(boxes)
	if err != nil {
		return "", fmt.Errorf("encoding bboxes: %w", err)
	}
	return string(b), nil
}

func decodeBBoxes(payload string) ([]BBox, error) {
	var boxes []BBox
	if payload == "" {
		return boxes, nil
	}
	if err := json.Unmarshal([]byte(payload), &boxes); err != nil {
		return nil, fmt.Errorf("decoding bboxes: %w", err)
	}
	return boxes, nil
}

// dedupeBBoxes rounds every coordinate to 4 decimals and removes exact
// duplicates while preserving first-seen order, per §8's bbox invariant.
func dedupeBBoxes(boxes []BBox) []BBox {
	type key struct{ x, y, w, h float64 }
	round := func(f float64) float64 {
		return float64(int64(f*10000+0.5)) / 10000
	}
	seen := make(map[key]bool, len(boxes))
	out := make([]BBox, 0, len(boxes))
	for _, b := range boxes {
		r := BBox{round(b.X), round(b.Y), round(b.W), round(b.H)}
		k := key{r.X, r.Y, r.W, r.H}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
