package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "maestro.db")
	log := logrus.NewEntry(logrus.New())
	s, err := Open(context.Background(), dsn, log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateProjectIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.GetOrCreateProject(ctx, "riverside", "/data/riverside")
	require.NoError(t, err)

	p2, err := s.GetOrCreateProject(ctx, "riverside", "/data/elsewhere")
	require.NoError(t, err)

	require.Equal(t, p1.ID, p2.ID)
	require.Equal(t, "/data/riverside", p2.Path, "second call must not mutate the existing row")
}

// S1: create workspace, add two pages, remove one.
func TestWorkspacePageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	ws, err := s.CreateWorkspace(ctx, proj.ID, "Foundation & Framing", "Grade beams + framing")
	require.NoError(t, err)
	require.Equal(t, "foundation_framing", ws.Slug)

	_, err = s.AddPage(ctx, proj.ID, ws.Slug, "S-101 Structural Foundation Plan", "")
	require.NoError(t, err)
	_, err = s.AddPage(ctx, proj.ID, ws.Slug, "S-102 Structural Framing Plan", "")
	require.NoError(t, err)

	detail, err := s.GetWorkspace(ctx, proj.ID, ws.Slug)
	require.NoError(t, err)
	require.Len(t, detail.Pages, 2)

	require.NoError(t, s.RemovePage(ctx, proj.ID, ws.Slug, "S-101 Structural Foundation Plan"))

	detail, err = s.GetWorkspace(ctx, proj.ID, ws.Slug)
	require.NoError(t, err)
	require.Len(t, detail.Pages, 1)
	require.Equal(t, "S-102 Structural Framing Plan", detail.Pages[0].PageName)
}

func TestCreateWorkspaceReturnsExistingOnSlugCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	first, err := s.CreateWorkspace(ctx, proj.ID, "Foundation & Framing", "first")
	require.NoError(t, err)

	second, err := s.CreateWorkspace(ctx, proj.ID, "Foundation & Framing!!", "second")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "first", second.Description)
}

// S4: message append and ordering.
func TestMessageOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	id1, err := s.AddMessage(ctx, proj.ID, RoleUser, "a")
	require.NoError(t, err)
	id2, err := s.AddMessage(ctx, proj.ID, RoleAssistant, "b")
	require.NoError(t, err)
	id3, err := s.AddMessage(ctx, proj.ID, RoleUser, "c")
	require.NoError(t, err)

	require.True(t, id1 < id2 && id2 < id3)

	msgs, err := s.GetMessages(ctx, proj.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

// Cascade: deleting a project must not orphan its messages/workspaces (the
// schema declares ON DELETE CASCADE; this exercises it end to end).
func TestProjectCascadeDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	_, err = s.CreateWorkspace(ctx, proj.ID, "Foundation", "")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, proj.ID, RoleUser, "hi")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, s.q(`DELETE FROM projects WHERE id = ?`), proj.ID)
	require.NoError(t, err)

	msgs, err := s.GetMessages(ctx, proj.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)

	workspaces, err := s.ListWorkspaces(ctx, proj.ID)
	require.NoError(t, err)
	require.Empty(t, workspaces)
}

func TestHighlightLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)
	ws, err := s.CreateWorkspace(ctx, proj.ID, "Walk-in Cooler", "")
	require.NoError(t, err)
	_, err = s.AddPage(ctx, proj.ID, ws.Slug, "K_211_ENLARGED_EQUIPMENT_FLOOR_PLAN_p001", "")
	require.NoError(t, err)

	h, err := s.AddHighlight(ctx, proj.ID, ws.Slug, "K_211_ENLARGED_EQUIPMENT_FLOOR_PLAN_p001", "highlight the cooler door")
	require.NoError(t, err)
	require.Equal(t, HighlightPending, h.Status)

	// S6: a 1000x1000 frame, rectangle (100,200,400,500) -> {0.1,0.2,0.3,0.3}.
	err = s.CompleteHighlight(ctx, h.ID, []BBox{{X: 0.1, Y: 0.2, W: 0.3, H: 0.3}})
	require.NoError(t, err)

	got, err := s.GetHighlight(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, HighlightComplete, got.Status)
	require.Equal(t, []BBox{{X: 0.1, Y: 0.2, W: 0.3, H: 0.3}}, got.BBoxes)

	// Terminal: completing again is a precondition failure.
	err = s.CompleteHighlight(ctx, h.ID, []BBox{{X: 0, Y: 0, W: 0.1, H: 0.1}})
	require.Error(t, err)
	require.IsType(t, PrecondError(""), err)
}

func TestDedupeBBoxes(t *testing.T) {
	boxes := dedupeBBoxes([]BBox{
		{X: 0.100001, Y: 0.2, W: 0.3, H: 0.3},
		{X: 0.1, Y: 0.2, W: 0.3, H: 0.3},
		{X: 0.5, Y: 0.5, W: 0.1, H: 0.1},
	})
	require.Len(t, boxes, 2)
}

func TestWorkspaceSlugResolution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)
	_, err = s.CreateWorkspace(ctx, proj.ID, "Foundation & Framing", "")
	require.NoError(t, err)

	slug, ok, err := s.ResolveWorkspaceSlug(ctx, proj.ID, "Foundation & Framing")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "foundation_framing", slug)

	_, ok, err = s.ResolveWorkspaceSlug(ctx, proj.ID, "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)
}
