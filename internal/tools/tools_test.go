package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "maestro.db")
	log := logrus.NewEntry(logrus.New())
	s, err := store.Open(context.Background(), dsn, log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestKnowledge(t *testing.T) *knowledge.Store {
	t.Helper()
	root := t.TempDir()
	pageDir := filepath.Join(root, "pages", "K_211_ENLARGED_EQUIPMENT_FLOOR_PLAN_p001")
	require.NoError(t, os.MkdirAll(pageDir, 0o755))

	pass1, err := json.Marshal(map[string]any{
		"sheet_reflection": "Walk-in cooler equipment floor plan.",
		"page_type":        "plan",
		"discipline":       "Kitchen",
		"regions":          []map[string]string{{"id": "r1", "label": "Cooler door detail"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(pageDir, "pass1.json"), pass1, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pageDir, "pass1.jpg"), []byte("fake-jpeg"), 0o644))

	kb, err := knowledge.NewLoader(logrus.NewEntry(logrus.New())).Load(root)
	require.NoError(t, err)
	return kb
}

func TestBuildRegistryRegistersAllCategories(t *testing.T) {
	st := newTestStore(t)
	kb := newTestKnowledge(t)
	ctx := context.Background()
	proj, err := st.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	r := Build(BuildOpts{
		Store:         st,
		Knowledge:     kb,
		ProjectID:     proj.ID,
		ExperienceDir: t.TempDir(),
		SwitchEngine:  func(name string) (string, error) { return "switched to " + name, nil },
	})

	names := map[string]bool{}
	for _, s := range r.Schemas() {
		names[s.Name] = true
	}
	for _, want := range []string{
		"list_disciplines", "search", "create_workspace", "add_page",
		"see_page", "highlight_on_page", "add_event", "upcoming",
		"update_experience", "update_knowledge", "switch_engine",
	} {
		require.True(t, names[want], "expected tool %q to be registered", want)
	}
}

func TestListPagesAndGetSheetSummary(t *testing.T) {
	kb := newTestKnowledge(t)
	r := NewRegistry()
	RegisterKnowledge(r, kb)

	res, err := r.Invoke(context.Background(), "list_pages", map[string]any{})
	require.NoError(t, err)
	require.IsType(t, TextResult{}, res)

	res, err = r.Invoke(context.Background(), "get_sheet_summary", map[string]any{"page_name": "K_211"})
	require.NoError(t, err)
	require.Equal(t, TextResult{Text: "Walk-in cooler equipment floor plan."}, res)
}

func TestGetSheetSummaryUnknownTokenIsPrecondition(t *testing.T) {
	kb := newTestKnowledge(t)
	r := NewRegistry()
	RegisterKnowledge(r, kb)

	res, err := r.Invoke(context.Background(), "get_sheet_summary", map[string]any{"page_name": "nonexistent"})
	require.NoError(t, err)
	require.IsType(t, PreconditionError{}, res)
}

func TestWorkspaceLifecycleThroughTools(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	proj, err := st.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	r := NewRegistry()
	RegisterWorkspace(r, st, proj.ID)

	res, err := r.Invoke(ctx, "create_workspace", map[string]any{"title": "Foundation & Framing", "description": "Grade beams"})
	require.NoError(t, err)
	require.IsType(t, TextResult{}, res)

	res, err = r.Invoke(ctx, "add_page", map[string]any{"workspace": "foundation_framing", "page_name": "S-101"})
	require.NoError(t, err)
	require.IsType(t, TextResult{}, res)

	res, err = r.Invoke(ctx, "get_workspace", map[string]any{"workspace": "Foundation & Framing"})
	require.NoError(t, err)
	require.IsType(t, TextResult{}, res)

	res, err = r.Invoke(ctx, "add_page", map[string]any{"workspace": "no-such-workspace", "page_name": "S-101"})
	require.NoError(t, err)
	require.IsType(t, PreconditionError{}, res)
}

func TestUpdateExperienceDeniesIdentityFiles(t *testing.T) {
	st := newTestStore(t)
	kb := newTestKnowledge(t)
	ctx := context.Background()
	proj, err := st.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "soul.json"), []byte(`{}`), 0o644))

	r := NewRegistry()
	RegisterLearning(r, st, kb, proj.ID, dir)

	res, err := r.Invoke(ctx, "update_experience", map[string]any{
		"file": "soul.json", "action": "set_field", "field": "x", "value": "y", "reasoning": "test",
	})
	require.NoError(t, err)
	tr, ok := res.(TextResult)
	require.True(t, ok)
	require.Contains(t, tr.Text, "DENIED")
}

func TestUnknownToolReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "does_not_exist", nil)
	require.Error(t, err)
}
