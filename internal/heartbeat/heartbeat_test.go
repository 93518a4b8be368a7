package heartbeat

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

func TestWindowHelpers(t *testing.T) {
	work := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	off := time.Date(2026, 7, 30, 19, 0, 0, 0, time.UTC)
	silent := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	earlySilent := time.Date(2026, 7, 30, 5, 0, 0, 0, time.UTC)

	require.True(t, isWorkHours(work))
	require.Equal(t, workIntervalMinutes, intervalMinutes(work))

	require.False(t, isWorkHours(off))
	require.False(t, isSilentHours(off))
	require.Equal(t, offIntervalMinutes, intervalMinutes(off))

	require.True(t, isSilentHours(silent))
	require.Equal(t, 0, intervalMinutes(silent))

	require.True(t, isSilentHours(earlySilent))
}

func TestShouldHeartbeat(t *testing.T) {
	work := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	require.True(t, shouldHeartbeat(nil, work), "no prior heartbeat always fires")

	recent := work.Add(-10 * time.Minute)
	require.False(t, shouldHeartbeat(&recent, work))

	stale := work.Add(-31 * time.Minute)
	require.True(t, shouldHeartbeat(&stale, work))

	silent := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	require.False(t, shouldHeartbeat(nil, silent), "silent hours never fire")
}

func TestDecideModeUrgentBeatsEverything(t *testing.T) {
	events := []store.ScheduleEvent{{Title: "Concrete pour", Start: "2026-08-01"}}
	d := decideMode(events, &store.WorkspaceDetail{}, []knowledge.Gap{{Type: "broken_ref"}}, store.HeartbeatState{}, nil)
	require.Equal(t, ModeUrgent, d.Mode)
	require.True(t, d.ShouldMessage)
}

func TestDecideModeTargetedBeatsCuriousAndBored(t *testing.T) {
	ws := &store.WorkspaceDetail{}
	ws.Title = "East Wing"
	d := decideMode(nil, ws, []knowledge.Gap{{Type: "broken_ref"}}, store.HeartbeatState{}, nil)
	require.Equal(t, ModeTargeted, d.Mode)
	require.False(t, d.ShouldMessage)
}

func TestDecideModeCuriousBeatsBoredAndCapsAtFive(t *testing.T) {
	var gaps []knowledge.Gap
	for i := 0; i < 8; i++ {
		gaps = append(gaps, knowledge.Gap{Type: "missing_pass2"})
	}
	d := decideMode(nil, nil, gaps, store.HeartbeatState{}, nil)
	require.Equal(t, ModeCurious, d.Mode)
	require.Len(t, d.Gaps, 5)
}

func TestDecideModeBoredIncrementsStreak(t *testing.T) {
	kb := loadFixtureKnowledge(t)
	d := decideMode(nil, nil, nil, store.HeartbeatState{BoredomStreak: 2}, kb)
	require.Equal(t, ModeBored, d.Mode)
	require.Equal(t, 3, d.BoredomStreak)
	require.NotEmpty(t, d.Boredom.Page)
}

func TestPickBoredomTargetPrefersLeastVisitedPages(t *testing.T) {
	kb := loadFixtureKnowledge(t)

	state := store.HeartbeatState{
		PagesVisited: map[string]store.PageVisit{
			"A-101": {Count: 50},
		},
	}

	seenLowVisit := false
	for i := 0; i < 50; i++ {
		target := pickBoredomTarget(state, kb)
		if target.Page != "A-101" {
			seenLowVisit = true
		}
		require.NotEqual(t, "A-101", target.Page, "the heavily visited page should never be in the bottom-scoring pool")
	}
	require.True(t, seenLowVisit)
}

func TestPickBoredomTargetCrossReferenceAtStreakThreshold(t *testing.T) {
	kb := loadFixtureKnowledge(t)
	state := store.HeartbeatState{BoredomStreak: boredomAdventurousStreak - 1}

	found := false
	for i := 0; i < 50; i++ {
		target := pickBoredomTarget(state, kb)
		if target.Type == "cross_reference" {
			found = true
			require.NotEmpty(t, target.CrossRefPage)
			require.NotEqual(t, target.Page, target.CrossRefPage)
		}
	}
	require.True(t, found, "at streak >= threshold a cross-discipline pick should eventually surface")
}

func TestBuildHeartbeatPromptPerMode(t *testing.T) {
	urgent := buildHeartbeatPrompt(Decision{Mode: ModeUrgent, Events: []store.ScheduleEvent{{Title: "Pour", Start: "2026-08-01"}}})
	require.Contains(t, urgent, "Pour")

	targeted := buildHeartbeatPrompt(Decision{Mode: ModeTargeted, Workspace: &store.WorkspaceDetail{}})
	require.NotEmpty(t, targeted)

	curious := buildHeartbeatPrompt(Decision{Mode: ModeCurious, Gaps: []knowledge.Gap{{Type: "broken_ref", Page: "A-101"}}})
	require.Contains(t, curious, "broken_ref")

	bored := buildHeartbeatPrompt(Decision{Mode: ModeBored, Boredom: BoredomTarget{Type: "explore", Page: "A-101", Suggestion: "Explore A-101"}})
	require.Contains(t, bored, "A-101")

	crossRef := buildHeartbeatPrompt(Decision{Mode: ModeBored, Boredom: BoredomTarget{Type: "cross_reference", Page: "A-101", CrossRefPage: "S-201"}})
	require.Contains(t, crossRef, "A-101")
	require.Contains(t, crossRef, "S-201")
}

// fakeConversation is a deterministic ConversationSender stand-in.
type fakeConversation struct {
	reply   string
	prompts []string
}

func (f *fakeConversation) Send(ctx context.Context, userText string) (string, error) {
	f.prompts = append(f.prompts, userText)
	return f.reply, nil
}

// fakeSender captures forwarded messages instead of delivering them.
type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, body)
	return nil
}

func TestTickSkipsDuringSilentHours(t *testing.T) {
	st := newTestStore(t)
	kb := loadFixtureKnowledge(t)
	proj, err := st.GetOrCreateProject(context.Background(), "p1", "/data/p1")
	require.NoError(t, err)

	conv := &fakeConversation{reply: "all clear"}
	snd := &fakeSender{}
	sched := New(st, kb, conv, snd, proj.ID, "+15555550100", logrus.NewEntry(logrus.New()))
	sched.now = func() time.Time { return time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC) }

	require.NoError(t, sched.Tick(context.Background()))
	require.Empty(t, conv.prompts, "silent hours must not trigger a heartbeat")
}

func TestTickUrgentForwardsReplyAndRecordsState(t *testing.T) {
	st := newTestStore(t)
	kb := loadFixtureKnowledge(t)
	proj, err := st.GetOrCreateProject(context.Background(), "p1", "/data/p1")
	require.NoError(t, err)

	_, err = st.AddEvent(context.Background(), proj.ID, "Concrete pour", time.Now().UTC().Format("2006-01-02"), "", "milestone", "")
	require.NoError(t, err)

	conv := &fakeConversation{reply: "Looks clear, no conflicts found."}
	snd := &fakeSender{}
	sched := New(st, kb, conv, snd, proj.ID, "+15555550100", logrus.NewEntry(logrus.New()))
	sched.now = func() time.Time { return time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, sched.Tick(context.Background()))
	require.Len(t, conv.prompts, 1)
	require.Contains(t, conv.prompts[0], "Concrete pour")
	require.Equal(t, []string{"Looks clear, no conflicts found."}, snd.sent)

	state, err := st.GetHeartbeatState(context.Background(), proj.ID)
	require.NoError(t, err)
	require.NotNil(t, state.LastHeartbeat)
	require.NotNil(t, state.LastScheduleCheck)
	require.Equal(t, 0, state.BoredomStreak)
}

func TestTickBoredDoesNotForward(t *testing.T) {
	st := newTestStore(t)
	// One page with no regions and no cross-references: CheckGaps is empty,
	// so with no events or workspaces the tick lands in bored mode.
	root := t.TempDir()
	pageDir := filepath.Join(root, "pages", "A-101")
	require.NoError(t, os.MkdirAll(pageDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pageDir, "pass1.json"), []byte(`{"discipline":"Architectural"}`), 0o644))
	kb, err := knowledge.NewLoader(logrus.NewEntry(logrus.New())).Load(root)
	require.NoError(t, err)
	proj, err := st.GetOrCreateProject(context.Background(), "p1", "/data/p1")
	require.NoError(t, err)

	conv := &fakeConversation{reply: "Nothing much here."}
	snd := &fakeSender{}
	sched := New(st, kb, conv, snd, proj.ID, "+15555550100", logrus.NewEntry(logrus.New()))
	sched.now = func() time.Time { return time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, sched.Tick(context.Background()))
	require.Len(t, conv.prompts, 1)
	require.Empty(t, snd.sent, "bored mode never forwards to the super")

	state, err := st.GetHeartbeatState(context.Background(), proj.ID)
	require.NoError(t, err)
	require.Equal(t, 1, state.BoredomStreak)
	require.NotEmpty(t, state.PagesVisited)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "maestro.db")
	st, err := store.Open(context.Background(), dsn, logrus.NewEntry(logrus.New()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// loadFixtureKnowledge builds a tiny two-discipline knowledge store on disk
// and loads it, giving the boredom-scoring tests real pages to score.
func loadFixtureKnowledge(t *testing.T) *knowledge.Store {
	t.Helper()
	root := t.TempDir()

	writePage := func(name, discipline string, regionIDs []string, pointerIDs []string) {
		pageDir := filepath.Join(root, "pages", name)
		require.NoError(t, os.MkdirAll(pageDir, 0o755))

		var regions []map[string]string
		for _, id := range regionIDs {
			regions = append(regions, map[string]string{"id": id, "type": "detail", "label": id})
		}
		pass1 := map[string]any{
			"discipline": discipline,
			"page_type":  "plan",
			"regions":    regions,
		}
		raw, err := json.Marshal(pass1)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(pageDir, "pass1.json"), raw, 0o644))

		for _, id := range pointerIDs {
			pointerDir := filepath.Join(pageDir, "pointers", id)
			require.NoError(t, os.MkdirAll(pointerDir, 0o755))
			pass2 := map[string]string{"label": id, "content_markdown": "content for " + id}
			raw, err := json.Marshal(pass2)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(pointerDir, "pass2.json"), raw, 0o644))
		}
	}

	writePage("A-101", "Architectural", []string{"A1", "A2"}, []string{"A1"})
	writePage("S-201", "Structural", []string{"S1"}, nil)
	writePage("M-301", "Mechanical", []string{"M1"}, []string{"M1"})

	loader := knowledge.NewLoader(logrus.NewEntry(logrus.New()))
	kb, err := loader.Load(root)
	require.NoError(t, err)
	return kb
}
