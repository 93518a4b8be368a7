package conversation

import (
	"context"
	"fmt"
	"strings"

	"maestro/internal/store"
)

const (
	charsPerToken       = 4
	compactionThreshold = 0.65
	keepRecent          = 20
	flattenLineMax      = 500
	fallbackExcerptMax  = 2000
)

// estimateTokens is Maestro's rough token count from character length
// (§4.E "tokens(s) = len(s) / 4").
func estimateTokens(s string) int {
	return len(s) / charsPerToken
}

func estimateMessagesTokens(rows []store.Message) int {
	total := 0
	for _, m := range rows {
		total += estimateTokens(m.Content)
	}
	return total
}

func needsCompaction(fixedTokens, summaryTokens, messageTokens, contextLimit int) bool {
	if contextLimit <= 0 {
		return true
	}
	total := fixedTokens + summaryTokens + messageTokens
	return float64(total)/float64(contextLimit) >= compactionThreshold
}

// flattenMessages renders the old (about-to-be-compacted) rows as the
// readable Super:/Maestro: text the summarization prompt incorporates,
// mirroring _messages_to_text: each message's stored content already
// embeds any tool-call/result markers (§4.A), so flattening here only
// needs to relabel role and cap line length; the embedded
// "[Tool: name(args)] -> result" markers already read close enough to the
// original's own "[Tool: name]"/"[Tool result: ...]" shorthand that no
// further collapsing is needed beyond the per-line slice.
func flattenMessages(rows []store.Message) string {
	var lines []string
	for _, m := range rows {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		label := "Maestro"
		if m.Role == store.RoleUser {
			label = "Super"
		}
		if len(text) > flattenLineMax {
			text = text[:flattenLineMax]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, text))
	}
	return strings.Join(lines, "\n")
}

// buildCompactionPrompt mirrors _build_compaction_prompt: a fixed
// instruction block asking the summarizer to preserve decisions, open
// questions, findings, schedule items, and commitments while stripping
// pleasantries, followed by the existing summary (if any) and the
// flattened old text.
func buildCompactionPrompt(existingSummary, oldText string) string {
	var b strings.Builder
	b.WriteString("You are summarizing a conversation between Maestro (an AI construction plan analyst) ")
	b.WriteString("and a superintendent. Produce a concise summary that preserves:\n")
	b.WriteString("- Key decisions made\n")
	b.WriteString("- Open questions and RFIs\n")
	b.WriteString("- Important findings (coordination gaps, conflicts, missing info)\n")
	b.WriteString("- Schedule items discussed (dates, deadlines, pour dates)\n")
	b.WriteString("- Any commitments or action items\n")
	b.WriteString("- The super's preferences and communication style\n\n")
	b.WriteString("Be factual and specific. Include dates, sheet numbers, and detail references.\n")
	b.WriteString("Do NOT include pleasantries, greetings, or filler.\n")

	if existingSummary != "" {
		b.WriteString("\n--- EXISTING SUMMARY ---\n")
		b.WriteString(existingSummary)
	}

	b.WriteString("\n--- NEW CONVERSATION TO INCORPORATE ---\n")
	b.WriteString(oldText)
	b.WriteString("\n--- UPDATED SUMMARY ---")

	return b.String()
}

// fallbackSummary is what a failed summarizer call falls back to: the
// existing summary plus a truncated slice of the old text (§4.E, §7 tier 2
// "external-service failures").
func fallbackSummary(existingSummary, oldText string) string {
	truncated := oldText
	if len(oldText) > fallbackExcerptMax {
		truncated = oldText[:fallbackExcerptMax] + "\n[truncated]"
	}
	if existingSummary != "" {
		return existingSummary + "\n\n[Additional context]\n" + truncated
	}
	return truncated
}

// maybeCompact checks context usage and, if over threshold, summarizes
// every message but the most recent keepRecent and atomically replaces them
// with the new summary (§4.E steps labelled "Compaction trigger/procedure").
// Caller must hold c.mu.
func (c *Conversation) maybeCompact(ctx context.Context) error {
	state, err := c.store.GetConversationState(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("conversation: loading state for compaction check: %w", err)
	}
	rows, err := c.store.GetMessages(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("conversation: loading messages for compaction check: %w", err)
	}

	summaryTokens := estimateTokens(state.Summary)
	messageTokens := estimateMessagesTokens(rows)

	if !needsCompaction(c.fixedTokens, summaryTokens, messageTokens, c.providerCfg.ContextLimit) {
		return nil
	}
	if len(rows) <= keepRecent {
		return nil
	}

	cutoff := rows[len(rows)-keepRecent].ID
	old := rows[:len(rows)-keepRecent]

	oldText := flattenMessages(old)
	prompt := buildCompactionPrompt(state.Summary, oldText)

	var newSummary string
	if c.summarize != nil {
		newSummary, err = c.summarize(ctx, prompt)
	} else {
		err = fmt.Errorf("no summarizer configured")
	}
	if err != nil {
		newSummary = fallbackSummary(state.Summary, oldText)
	}

	if err := c.store.Compact(ctx, c.projectID, cutoff, newSummary); err != nil {
		return fmt.Errorf("conversation: compacting: %w", err)
	}
	return nil
}
