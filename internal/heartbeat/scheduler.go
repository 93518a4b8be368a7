package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"maestro/internal/knowledge"
	"maestro/internal/sender"
	"maestro/internal/store"
)

// ConversationSender is the slice of *conversation.Conversation a Scheduler
// needs: just the single send entry point, so this package never imports
// conversation directly and tests can swap in a fake.
type ConversationSender interface {
	Send(ctx context.Context, userText string) (string, error)
}

// Scheduler drives one project's heartbeat loop, grounded on the teacher's
// time.Ticker-driven download pollers (comfy.go's imageHandler, imggen.go).
type Scheduler struct {
	store     *store.Store
	knowledge *knowledge.Store
	conv      ConversationSender
	sender    sender.Sender
	projectID string
	recipient string
	log       *logrus.Entry

	now func() time.Time
}

// New constructs a Scheduler. recipient is who ShouldMessage replies get
// forwarded to (the super's phone number, per config.Config.UserPhoneNumber).
func New(st *store.Store, kb *knowledge.Store, conv ConversationSender, snd sender.Sender, projectID, recipient string, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		store:     st,
		knowledge: kb,
		conv:      conv,
		sender:    snd,
		projectID: projectID,
		recipient: recipient,
		log:       log,
		now:       time.Now,
	}
}

// Run ticks once a minute until ctx is canceled, calling Tick on every beat.
// A failed tick is logged and never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.WithError(err).Warn("heartbeat tick failed")
			}
		}
	}
}

// Tick runs one heartbeat check: a no-op unless enough time has passed since
// the last heartbeat and the silent window isn't active (§4.F).
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	state, err := s.store.GetHeartbeatState(ctx, s.projectID)
	if err != nil {
		return fmt.Errorf("heartbeat: loading state: %w", err)
	}
	if !shouldHeartbeat(state.LastHeartbeat, now) {
		return nil
	}

	events, err := s.store.UpcomingEvents(ctx, s.projectID, scheduleLookaheadDays)
	if err != nil {
		return fmt.Errorf("heartbeat: loading upcoming events: %w", err)
	}

	workspace, err := s.pickActiveWorkspace(ctx)
	if err != nil {
		return fmt.Errorf("heartbeat: picking active workspace: %w", err)
	}

	gaps := s.knowledge.CheckGaps()

	decision := decideMode(events, workspace, gaps, state, s.knowledge)
	prompt := buildHeartbeatPrompt(decision)

	reply, err := s.conv.Send(ctx, prompt)
	if err != nil {
		return fmt.Errorf("heartbeat: sending prompt: %w", err)
	}

	if decision.ShouldMessage && s.sender != nil {
		if err := s.sender.Send(ctx, s.recipient, reply); err != nil {
			s.log.WithError(err).Warn("heartbeat: failed to forward urgent reply")
		}
	}

	return s.recordHeartbeat(ctx, state, decision, now)
}

// pickActiveWorkspace returns the least-recently-updated active workspace
// that has at least one page, or nil if none qualifies. ListWorkspaces
// orders most-recently-updated first, so the search walks it backwards.
func (s *Scheduler) pickActiveWorkspace(ctx context.Context) (*store.WorkspaceDetail, error) {
	workspaces, err := s.store.ListWorkspaces(ctx, s.projectID)
	if err != nil {
		return nil, err
	}
	for i := len(workspaces) - 1; i >= 0; i-- {
		w := workspaces[i]
		if w.Status != "active" {
			continue
		}
		detail, err := s.store.GetWorkspace(ctx, s.projectID, w.Slug)
		if err != nil {
			return nil, err
		}
		if len(detail.Pages) > 0 {
			return &detail, nil
		}
	}
	return nil, nil
}

// recordHeartbeat persists the after-effects of a tick, ported from
// record_heartbeat: bump last_heartbeat, reset (or carry forward) the
// boredom streak, bump page visit counters, and track the last schedule
// check on urgent/targeted ticks.
func (s *Scheduler) recordHeartbeat(ctx context.Context, state store.HeartbeatState, decision Decision, now time.Time) error {
	state.LastHeartbeat = &now

	if decision.Mode == ModeBored {
		state.BoredomStreak = decision.BoredomStreak
	} else {
		state.BoredomStreak = 0
	}

	if state.PagesVisited == nil {
		state.PagesVisited = map[string]store.PageVisit{}
	}
	for _, page := range decision.TouchedPages() {
		if page == "" {
			continue
		}
		pv := state.PagesVisited[page]
		pv.Count++
		pv.Last = now
		state.PagesVisited[page] = pv
	}

	if decision.Mode == ModeUrgent || decision.Mode == ModeTargeted {
		state.LastScheduleCheck = &now
	}

	return s.store.SaveHeartbeatState(ctx, state)
}
