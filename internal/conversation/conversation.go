// Package conversation is Maestro's single continuous thread: one project,
// one active provider engine, one tool registry, sent and compacted under a
// single mutex so two overlapping calls can never race each other's view of
// history (§4.E "One Maestro. One super. One thread. Forever.").
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"maestro/internal/config"
	"maestro/internal/eventbus"
	"maestro/internal/provider"
	"maestro/internal/store"
	"maestro/internal/tools"
)

// Summarizer produces a fresh compaction summary from the prompt compaction
// builds out of the existing summary and the flattened old messages.
// Conversation calls the configured cheap/fast engine through this so
// compaction never depends on whichever (possibly expensive) engine is
// currently active (§4.E, grounded on the original's
// _summarize_with_gemini_flash).
type Summarizer func(ctx context.Context, prompt string) (string, error)

// Options bundles everything Conversation needs beyond the store and
// project id. Tools is attached separately via SetTools because the
// registry's switch_engine tool closes over the Conversation's SwitchEngine
// method, which doesn't exist until after New returns.
type Options struct {
	Config       config.Config
	Keys         Keys
	HTTPClient   *http.Client
	Summarize    Summarizer
	Emit         store.EventFunc
	SystemPrompt string
}

// Conversation is the engine described above.
type Conversation struct {
	mu sync.Mutex

	store     *store.Store
	tools     *tools.Registry
	projectID string

	cfg        config.Config
	keys       Keys
	httpClient *http.Client
	summarize  Summarizer
	emit       store.EventFunc

	systemPrompt string
	engine       string
	providerCfg  config.ProviderConfig
	adapter      provider.Adapter
	fixedTokens  int
}

// New constructs a Conversation on the configured default engine. Call
// SetTools once the registry is built before the first Send.
func New(ctx context.Context, st *store.Store, projectID string, opts Options) (*Conversation, error) {
	pc, ok := opts.Config.Provider(opts.Config.DefaultEngine)
	if !ok {
		return nil, fmt.Errorf("conversation: unknown default engine %q", opts.Config.DefaultEngine)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	adapter, err := buildAdapter(ctx, pc, opts.Keys, httpClient)
	if err != nil {
		return nil, fmt.Errorf("conversation: building %s adapter: %w", pc.Name, err)
	}

	return &Conversation{
		store:        st,
		projectID:    projectID,
		cfg:          opts.Config,
		keys:         opts.Keys,
		httpClient:   httpClient,
		summarize:    opts.Summarize,
		emit:         opts.Emit,
		systemPrompt: opts.SystemPrompt,
		engine:       pc.Name,
		providerCfg:  pc,
		adapter:      adapter,
		fixedTokens:  estimateTokens(opts.SystemPrompt),
	}, nil
}

// SetTools attaches the tool registry and recomputes the fixed token
// estimate F = tokens(system_prompt) + tokens(tool_schemas_text) (§4.E).
func (c *Conversation) SetTools(reg *tools.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = reg
	c.recomputeFixedTokens()
}

func (c *Conversation) recomputeFixedTokens() {
	schemas := c.tools.Schemas()
	b, _ := json.Marshal(schemas)
	c.fixedTokens = estimateTokens(c.systemPrompt) + estimateTokens(string(b))
}

// Send appends the super's message, compacts if needed, runs the full
// provider tool-use loop, and persists the reply (§4.E "send").
func (c *Conversation) Send(ctx context.Context, userText string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.AddMessage(ctx, c.projectID, store.RoleUser, userText); err != nil {
		return "", fmt.Errorf("conversation: persisting user message: %w", err)
	}

	if err := c.maybeCompact(ctx); err != nil {
		return "", err
	}

	history, err := c.buildHistory(ctx)
	if err != nil {
		return "", err
	}

	result, err := c.adapter.Send(ctx, history, c.systemPrompt, c.tools)
	if err != nil {
		return "", fmt.Errorf("conversation: %s send: %w", c.engine, err)
	}

	composed := result.FinalText
	if len(result.History) > 0 {
		composed = result.History[len(result.History)-1].Content
	}
	if _, err := c.store.AddMessage(ctx, c.projectID, store.RoleAssistant, composed); err != nil {
		return "", fmt.Errorf("conversation: persisting assistant message: %w", err)
	}

	if err := c.store.UpdateConversationState(ctx, c.projectID, store.ConversationStateUpdate{BumpExchanges: true}); err != nil {
		return "", fmt.Errorf("conversation: bumping exchange count: %w", err)
	}

	return result.FinalText, nil
}

// buildHistory reproduces _build_messages_for_api: the summary (if any)
// injected as a synthetic user/assistant exchange, followed by the most
// recent keepRecent messages in the store.
func (c *Conversation) buildHistory(ctx context.Context) ([]provider.Message, error) {
	state, err := c.store.GetConversationState(ctx, c.projectID)
	if err != nil {
		return nil, fmt.Errorf("conversation: loading state: %w", err)
	}

	var history []provider.Message
	if state.Summary != "" {
		history = append(history,
			provider.Message{Role: "user", Content: "[Conversation history summary — this is context from our previous exchanges]"},
			provider.Message{Role: "assistant", Content: "I remember. Here's what we've covered:\n\n" + state.Summary},
		)
	}

	rows, err := c.store.GetRecentMessages(ctx, c.projectID, keepRecent)
	if err != nil {
		return nil, fmt.Errorf("conversation: loading messages: %w", err)
	}
	for _, m := range rows {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// SwitchEngine replaces the active provider mid-conversation; history stays
// in the store untouched (§4.E "switch_engine"). It is registered as the
// switch_engine tool's EngineSwitcher callback.
func (c *Conversation) SwitchEngine(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == c.engine {
		return fmt.Sprintf("Already running on %s.", name), nil
	}
	pc, ok := c.cfg.Provider(name)
	if !ok {
		return "", fmt.Errorf("unknown engine %q", name)
	}

	adapter, err := buildAdapter(context.Background(), pc, c.keys, c.httpClient)
	if err != nil {
		return "", fmt.Errorf("building %s adapter: %w", name, err)
	}

	old := c.engine
	c.engine = name
	c.providerCfg = pc
	c.adapter = adapter
	c.recomputeFixedTokens()

	if err := c.maybeCompact(context.Background()); err != nil {
		return "", err
	}

	c.publish(eventbus.TypeEngineSwitch, map[string]any{"project_id": c.projectID, "from": old, "to": name})

	return fmt.Sprintf("Switched from %s to %s (%s). Conversation preserved.", old, name, pc.DisplayName), nil
}

func (c *Conversation) publish(eventType string, payload map[string]any) {
	if c.emit == nil {
		return
	}
	c.emit(eventType, payload)
}

// Stats is the get_stats() shape (§4.E).
type Stats struct {
	Engine           string  `json:"engine"`
	ContextLimit     int     `json:"context_limit"`
	EstimatedTokens  int     `json:"estimated_tokens"`
	UsagePct         float64 `json:"usage_pct"`
	MessagesInMemory int     `json:"messages_in_memory"`
	TotalExchanges   int     `json:"total_exchanges"`
	Compactions      int     `json:"compactions"`
	HasSummary       bool    `json:"has_summary"`
	SummaryLength    int     `json:"summary_length"`
}

// GetStats reports the current engine, usage estimate, and exchange counts.
func (c *Conversation) GetStats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.GetConversationState(ctx, c.projectID)
	if err != nil {
		return Stats{}, fmt.Errorf("conversation: loading state: %w", err)
	}
	rows, err := c.store.GetMessages(ctx, c.projectID)
	if err != nil {
		return Stats{}, fmt.Errorf("conversation: loading messages: %w", err)
	}

	summaryTokens := estimateTokens(state.Summary)
	messageTokens := estimateMessagesTokens(rows)
	total := c.fixedTokens + summaryTokens + messageTokens

	usage := 1.0
	if c.providerCfg.ContextLimit > 0 {
		usage = float64(total) / float64(c.providerCfg.ContextLimit)
	}

	return Stats{
		Engine:           c.engine,
		ContextLimit:     c.providerCfg.ContextLimit,
		EstimatedTokens:  total,
		UsagePct:         usage,
		MessagesInMemory: len(rows),
		TotalExchanges:   state.TotalExchanges,
		Compactions:      state.Compactions,
		HasSummary:       state.Summary != "",
		SummaryLength:    len(state.Summary),
	}, nil
}
