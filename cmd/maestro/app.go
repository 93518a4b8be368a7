package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"maestro/internal/config"
	"maestro/internal/conversation"
	"maestro/internal/eventbus"
	"maestro/internal/heartbeat"
	"maestro/internal/identity"
	"maestro/internal/knowledge"
	"maestro/internal/sender"
	"maestro/internal/store"
	"maestro/internal/tools"
	"maestro/internal/vision"
)

// app bundles every long-lived component one running Maestro process
// wires together, shared between "serve" and "chat".
type app struct {
	cfg   *config.Config
	log   *logrus.Entry
	store    *store.Store
	kb       *knowledge.Store
	bus      *eventbus.Bus
	conv     *conversation.Conversation
	registry *tools.Registry
	proj     store.Project
	thumbs   *knowledge.ThumbnailCache
}

// buildApp loads config, opens the store, loads knowledge, and assembles
// one Conversation with its full tool registry and vision worker wired in.
// Both entry points (serve, chat) start from here; only what happens to the
// result afterward (HTTP server vs. stdin loop) differs.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	log := logrus.NewEntry(logger)

	bus := eventbus.NewBus(log)
	emit := func(eventType string, payload map[string]any) {
		bus.Broadcast(eventbus.New(eventType, payload))
	}

	st, err := store.Open(ctx, cfg.DatabaseDSN, log, emit)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	proj, err := st.GetOrCreateProject(ctx, cfg.ProjectName, cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}

	knowledgePath := cfg.KnowledgePath
	if knowledgePath == "" {
		knowledgePath = filepath.Join(cfg.DataPath, "knowledge_store", cfg.ProjectName)
	}
	kb, err := knowledge.NewLoader(log).Load(knowledgePath)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge store: %w", err)
	}

	experienceDir := filepath.Join(cfg.DataPath, "experience")
	systemPrompt := identity.BuildSystemPrompt(experienceDir)

	keys := conversation.Keys{
		Anthropic: cfg.AnthropicKey,
		OpenAI:    cfg.OpenAIAPIKey,
		Google:    cfg.GoogleGeminiKey,
	}

	var summarize conversation.Summarizer
	if cfg.GoogleGeminiKey != "" {
		summarize, err = conversation.NewGeminiSummarizer(ctx, cfg.GoogleGeminiKey, cfg.SummarizerModel)
		if err != nil {
			return nil, fmt.Errorf("building summarizer: %w", err)
		}
	}

	conv, err := conversation.New(ctx, st, proj.ID, conversation.Options{
		Config:       *cfg,
		Keys:         keys,
		Summarize:    summarize,
		Emit:         emit,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("building conversation: %w", err)
	}

	var visionCaller vision.Caller
	if cfg.GoogleGeminiKey != "" {
		gc, verr := vision.NewGeminiCaller(ctx, cfg.GoogleGeminiKey, "", nil)
		if verr != nil {
			return nil, fmt.Errorf("building vision caller: %w", verr)
		}
		visionCaller = gc.Call
	}
	worker := vision.NewWorker(kb, st, emit, visionCaller, log)

	registry := tools.Build(tools.BuildOpts{
		Store:         st,
		Knowledge:     kb,
		ProjectID:     proj.ID,
		ExperienceDir: experienceDir,
		Dispatch:      worker.Dispatch,
		SwitchEngine:  conv.SwitchEngine,
	})
	conv.SetTools(registry)

	thumbs, err := knowledge.NewThumbnailCache(ctx, filepath.Join(cfg.DataPath, "thumbnails"), cfg.ThumbnailBucket, cfg.ThumbnailRegion, log)
	if err != nil {
		return nil, fmt.Errorf("building thumbnail cache: %w", err)
	}

	return &app{cfg: cfg, log: log, store: st, kb: kb, bus: bus, conv: conv, registry: registry, proj: proj, thumbs: thumbs}, nil
}

// startHeartbeat launches the background scheduler on its own goroutine,
// forwarding urgent-mode replies through snd to the super's phone.
func (a *app) startHeartbeat(ctx context.Context, snd sender.Sender) {
	sched := heartbeat.New(a.store, a.kb, a.conv, snd, a.proj.ID, a.cfg.UserPhoneNumber, a.log)
	go sched.Run(ctx)
}

func (a *app) toolCount() int {
	return len(a.registry.Schemas())
}
