package heartbeat

import (
	"fmt"
	"strings"
)

// buildHeartbeatPrompt turns a Decision into the synthetic user message fed
// through Conversation.Send, ported from _build_heartbeat_prompt's four
// mode-specific templates.
func buildHeartbeatPrompt(d Decision) string {
	switch d.Mode {
	case ModeUrgent:
		return buildUrgentPrompt(d)
	case ModeTargeted:
		return buildTargetedPrompt(d)
	case ModeCurious:
		return buildCuriousPrompt(d)
	default:
		return buildBoredPrompt(d)
	}
}

func buildUrgentPrompt(d Decision) string {
	var b strings.Builder
	b.WriteString("Heads up — here's what's coming up on the schedule:\n\n")
	for _, e := range d.Events {
		fmt.Fprintf(&b, "- %s (%s)\n", e.Title, e.Start)
	}
	b.WriteString("\nCheck these against the plans for anything that might cause a conflict or a ")
	b.WriteString("coordination gap before they happen. If something looks like it needs the super's ")
	b.WriteString("attention, say so plainly and be specific about which sheet or detail it concerns. ")
	b.WriteString("Be thorough — this is the kind of thing that's expensive to catch late.")
	return b.String()
}

func buildTargetedPrompt(d Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workspace %q has pages that haven't been looked at in a while. ", d.Workspace.Title)
	b.WriteString("Go through its pages and notes and look for open questions, missing details, or ")
	b.WriteString("cross-references worth chasing down. If you find something worth remembering, add it ")
	b.WriteString("to your experience so it carries forward.")
	return b.String()
}

func buildCuriousPrompt(d Decision) string {
	var b strings.Builder
	b.WriteString("A few gaps have turned up that are worth investigating:\n\n")
	for _, g := range d.Gaps {
		detail := g.Page
		if g.Detail != nil {
			detail = fmt.Sprint(g.Detail)
		}
		fmt.Fprintf(&b, "- %s: %s\n", g.Type, detail)
	}
	b.WriteString("\nPick through these, use vision if a sheet needs a closer look, and update your ")
	b.WriteString("knowledge or experience notes with whatever you find.")
	return b.String()
}

func buildBoredPrompt(d Decision) string {
	var b strings.Builder
	switch d.Boredom.Type {
	case "cross_reference":
		fmt.Fprintf(&b, "Nothing urgent right now, so take a closer look at %s and %s. ", d.Boredom.Page, d.Boredom.CrossRefPage)
		b.WriteString("Read both sheets and look for anything shared between them — materials, dimensions, ")
		b.WriteString("coordination points, or outright conflicts. Note anything worth keeping as a workspace ")
		b.WriteString("note, and update your experience with what you learn.")
	case "no_pages", "no_project":
		b.WriteString(d.Boredom.Suggestion)
	default:
		fmt.Fprintf(&b, "%s. ", d.Boredom.Suggestion)
		b.WriteString("Read through its sheet reflection and regions, and note anything surprising or worth ")
		b.WriteString("flagging. Update your experience with what you learn.")
	}
	return b.String()
}
