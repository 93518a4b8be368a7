package conversation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"maestro/internal/config"
	"maestro/internal/provider"
	"maestro/internal/store"
	"maestro/internal/tools"
)

// fakeAdapter is a deterministic provider.Adapter stand-in: Send appends one
// assistant turn echoing back the last user message, never invoking any
// tool, so Conversation tests never depend on a real provider SDK.
type fakeAdapter struct {
	reply string
	sends int
}

func (f *fakeAdapter) BuildSchemas(schemas []tools.Schema) any { return schemas }

func (f *fakeAdapter) Send(ctx context.Context, history []provider.Message, systemPrompt string, reg *tools.Registry) (provider.Result, error) {
	f.sends++
	reply := f.reply
	if reply == "" {
		reply = "ack: " + history[len(history)-1].Content
	}
	return provider.Result{
		History:   append(append([]provider.Message{}, history...), provider.Message{Role: "assistant", Content: reply}),
		FinalText: reply,
	}, nil
}

func newTestConversation(t *testing.T) (*Conversation, *store.Store, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "maestro.db")
	log := logrus.NewEntry(logrus.New())
	st, err := store.Open(context.Background(), dsn, log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	proj, err := st.GetOrCreateProject(context.Background(), "p1", "/data/p1")
	require.NoError(t, err)

	cfg := config.Config{
		DefaultEngine: "test",
		Providers: []config.ProviderConfig{
			{Name: "test", Kind: "openai", Model: "gpt-test", ContextLimit: 1000, DisplayName: "Test Engine"},
			{Name: "other", Kind: "openai", Model: "gpt-other", ContextLimit: 2000, DisplayName: "Other Engine"},
		},
	}

	c, err := New(context.Background(), st, proj.ID, Options{Config: cfg, SystemPrompt: "be helpful"})
	require.NoError(t, err)
	c.adapter = &fakeAdapter{}

	reg := tools.NewRegistry()
	tools.RegisterControl(reg, c.SwitchEngine)
	c.SetTools(reg)

	return c, st, proj.ID
}

func TestSendPersistsUserAndAssistantMessages(t *testing.T) {
	c, st, projectID := newTestConversation(t)

	reply, err := c.Send(context.Background(), "what's on sheet S-101?")
	require.NoError(t, err)
	require.Equal(t, "ack: what's on sheet S-101?", reply)

	rows, err := st.GetMessages(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, store.RoleUser, rows[0].Role)
	require.Equal(t, store.RoleAssistant, rows[1].Role)

	state, err := st.GetConversationState(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, 1, state.TotalExchanges)
}

func TestSwitchEngineRejectsUnknownName(t *testing.T) {
	c, _, _ := newTestConversation(t)

	_, err := c.SwitchEngine("does-not-exist")
	require.Error(t, err)
}

func TestSwitchEngineRejectsCurrentName(t *testing.T) {
	c, _, _ := newTestConversation(t)

	msg, err := c.SwitchEngine("test")
	require.NoError(t, err)
	require.Contains(t, msg, "Already running")
}

func TestSwitchEngineReplacesAdapterAndPreservesHistory(t *testing.T) {
	c, st, projectID := newTestConversation(t)

	_, err := c.Send(context.Background(), "first message")
	require.NoError(t, err)

	msg, err := c.SwitchEngine("other")
	require.NoError(t, err)
	require.Contains(t, msg, "Switched from test to other")

	rows, err := st.GetMessages(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, rows, 2, "history must survive an engine switch")

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "other", stats.Engine)
	require.Equal(t, 2000, stats.ContextLimit)
}

func TestGetStatsReportsUsage(t *testing.T) {
	c, _, _ := newTestConversation(t)

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", stats.Engine)
	require.Equal(t, 2, stats.MessagesInMemory)
	require.Equal(t, 1, stats.TotalExchanges)
	require.False(t, stats.HasSummary)
}

func TestMaybeCompactTriggersAboveThresholdAndKeepsRecentMessages(t *testing.T) {
	c, st, projectID := newTestConversation(t)
	c.providerCfg.ContextLimit = 50 // tiny limit so a handful of messages trips compaction
	c.summarize = func(ctx context.Context, prompt string) (string, error) {
		require.Contains(t, prompt, "UPDATED SUMMARY")
		return "summary of early discussion", nil
	}

	for i := 0; i < keepRecent+5; i++ {
		_, err := c.Send(context.Background(), strings.Repeat("x", 20))
		require.NoError(t, err)
	}

	// From the 11th Send on, every Send finds more than keepRecent rows over
	// the threshold and compacts back to keepRecent before the reply is
	// appended: 15 compactions, keepRecent+1 rows left.
	rows, err := st.GetMessages(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, rows, keepRecent+1)

	state, err := st.GetConversationState(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, "summary of early discussion", state.Summary)
	require.Equal(t, 15, state.Compactions)
}

func TestMaybeCompactFallsBackOnSummarizerError(t *testing.T) {
	c, st, projectID := newTestConversation(t)
	c.providerCfg.ContextLimit = 50
	c.summarize = func(ctx context.Context, prompt string) (string, error) {
		return "", assertErr
	}

	for i := 0; i < keepRecent+5; i++ {
		_, err := c.Send(context.Background(), strings.Repeat("y", 20))
		require.NoError(t, err)
	}

	rows, err := st.GetMessages(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, rows, keepRecent+1)

	state, err := st.GetConversationState(context.Background(), projectID)
	require.NoError(t, err)
	require.NotEmpty(t, state.Summary)
	require.Equal(t, 15, state.Compactions)
}

var assertErr = errString("summarizer unavailable")

type errString string

func (e errString) Error() string { return string(e) }
