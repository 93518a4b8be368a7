package heartbeat

import (
	"fmt"
	"math/rand"
	"sort"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// Mode is which of the four heartbeat behaviors a tick settled on.
type Mode string

const (
	ModeUrgent   Mode = "urgent"
	ModeTargeted Mode = "targeted"
	ModeCurious  Mode = "curious"
	ModeBored    Mode = "bored"
)

// BoredomTarget is what a bored tick decided to go look at, ported from
// _pick_boredom_target.
type BoredomTarget struct {
	Type         string // "no_project", "no_pages", "explore", "cross_reference"
	Page         string
	CrossRefPage string
	Suggestion   string
}

// Decision is the outcome of one tick's mode cascade, ported from
// decide_heartbeat_mode.
type Decision struct {
	Mode          Mode
	Reason        string
	ShouldMessage bool

	Events    []store.ScheduleEvent
	Workspace *store.WorkspaceDetail
	Gaps      []knowledge.Gap
	Boredom   BoredomTarget
	BoredomStreak int
}

// TouchedPages lists the pages this tick actually looked at, for
// record_heartbeat's visit-counter bump. Only the bored path names specific
// pages up front; urgent/targeted/curious missions are open-ended and their
// visit effects aren't tracked at this layer.
func (d Decision) TouchedPages() []string {
	if d.Mode != ModeBored {
		return nil
	}
	switch d.Boredom.Type {
	case "explore":
		if d.Boredom.Page == "" {
			return nil
		}
		return []string{d.Boredom.Page}
	case "cross_reference":
		return []string{d.Boredom.Page, d.Boredom.CrossRefPage}
	default:
		return nil
	}
}

// decideMode runs the cascade: urgent (schedule events) beats targeted
// (an active workspace with pages) beats curious (knowledge gaps) beats
// bored (nothing pressing). Only urgent sets ShouldMessage -- per the fix
// recorded in DESIGN.md, everything else is Maestro thinking to itself.
func decideMode(events []store.ScheduleEvent, workspace *store.WorkspaceDetail, gaps []knowledge.Gap, state store.HeartbeatState, kb *knowledge.Store) Decision {
	if len(events) > 0 {
		return Decision{
			Mode:          ModeUrgent,
			Reason:        fmt.Sprintf("%d event(s) in the next %d days", len(events), scheduleLookaheadDays),
			ShouldMessage: true,
			Events:        events,
		}
	}

	if workspace != nil {
		return Decision{
			Mode:   ModeTargeted,
			Reason: fmt.Sprintf("Workspace %q has pages to review", workspace.Title),
			Workspace: workspace,
		}
	}

	if len(gaps) > 0 {
		limited := gaps
		if len(limited) > 5 {
			limited = limited[:5]
		}
		return Decision{
			Mode:   ModeCurious,
			Reason: fmt.Sprintf("%d gap(s) to investigate", len(gaps)),
			Gaps:   limited,
		}
	}

	streak := state.BoredomStreak + 1
	return Decision{
		Mode:          ModeBored,
		Reason:        fmt.Sprintf("Nothing pressing. Boredom streak: %d", streak),
		Boredom:       pickBoredomTarget(state, kb),
		BoredomStreak: streak,
	}
}

type scoredPage struct {
	name  string
	score int
}

// pickBoredomTarget is a direct port of _pick_boredom_target: score every
// page by how little attention it's gotten, draw uniformly from the bottom
// 20% of scores, and if the boredom streak has built up far enough, pair the
// pick with a cross-discipline partner.
func pickBoredomTarget(state store.HeartbeatState, kb *knowledge.Store) BoredomTarget {
	names := kb.PageNames()
	if len(names) == 0 {
		return BoredomTarget{Type: "no_pages", Suggestion: "No pages have been ingested yet."}
	}

	scored := make([]scoredPage, 0, len(names))
	for _, name := range names {
		visits := state.PagesVisited[name].Count
		pointers := 0
		if p, ok := kb.Page(name); ok {
			pointers = len(p.Pointers)
		}
		missing := kb.RegionsWithoutPointer(name)
		score := visits*10 + pointers - missing*5
		scored = append(scored, scoredPage{name: name, score: score})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score < scored[j].score })

	poolSize := len(scored) / 5
	if poolSize < 1 {
		poolSize = 1
	}
	pool := scored[:poolSize]
	chosen := pool[rand.Intn(len(pool))].name

	if state.BoredomStreak+1 >= boredomAdventurousStreak {
		if crossRef, ok := pickCrossDiscipline(kb, chosen); ok {
			return BoredomTarget{
				Type:         "cross_reference",
				Page:         chosen,
				CrossRefPage: crossRef,
				Suggestion:   fmt.Sprintf("Explore %s and look for connections to %s", chosen, crossRef),
			}
		}
	}

	return BoredomTarget{
		Type:       "explore",
		Page:       chosen,
		Suggestion: fmt.Sprintf("Explore %s — haven't visited much", chosen),
	}
}

func pickCrossDiscipline(kb *knowledge.Store, chosen string) (string, bool) {
	chosenPage, ok := kb.Page(chosen)
	if !ok {
		return "", false
	}
	var candidates []string
	for _, name := range kb.PageNames() {
		if name == chosen {
			continue
		}
		p, ok := kb.Page(name)
		if !ok || p.Discipline == chosenPage.Discipline {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.Intn(len(candidates))], true
}
