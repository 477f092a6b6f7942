// Package compaction replaces a prefix of a session's history with a
// single synthesized summary entry once a configured threshold is
// exceeded (C6), using the mandatory two-phase lock pattern: clone and
// release, summarize outside any lock, then reacquire and splice.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

// Compact implements spec.md §4.6. It reads the current history under a
// short store access, summarizes outside any lock via client, and
// splices the result back in. If the session no longer exists by the
// time the splice happens, the error is swallowed: it may have been
// legitimately dropped by the host between phases.
func Compact(ctx context.Context, store *session.Store, client *llm.Client, candidates []llm.VendorModel, id session.ID, policy session.CompactionPolicy) error {
	data := store.GetSession(id)
	if data == nil {
		return session.NotFound(id)
	}

	n := len(data.History)
	keepLast := policy.KeepLast
	if keepLast < 0 {
		keepLast = 0
	}
	if n <= keepLast {
		return nil
	}
	// A prefix made up of nothing but an earlier summary entry is left as
	// it is, so a second pass straight after a compaction changes nothing.
	if first := data.History[0]; n-keepLast == 1 && first.Sender == session.SenderSystem &&
		strings.HasPrefix(first.Message, "Summary of earlier conversation: ") {
		return nil
	}

	toSummarize := data.History[:n-keepLast]
	toKeep := append([]session.ConversationEntry(nil), data.History[n-keepLast:]...)
	lastTimestamp := toSummarize[len(toSummarize)-1].Timestamp

	summaryText, err := summarize(ctx, client, candidates, toSummarize, policy.SummaryLength)
	if err != nil {
		return fmt.Errorf("compaction: summarize: %w", err)
	}

	summaryEntry := session.ConversationEntry{
		ID:        session.NewID(),
		Sender:    session.SenderSystem,
		Message:   fmt.Sprintf("Summary of earlier conversation: %s", summaryText),
		Timestamp: lastTimestamp,
	}

	newHistory := make([]session.ConversationEntry, 0, len(toKeep)+1)
	newHistory = append(newHistory, summaryEntry)
	newHistory = append(newHistory, toKeep...)

	if err := store.ReplaceHistory(id, newHistory); err != nil {
		if session.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

func summarize(ctx context.Context, client *llm.Client, candidates []llm.VendorModel, entries []session.ConversationEntry, summaryLength int) (string, error) {
	prompt := buildSummarizationPrompt(entries, summaryLength)
	return client.Raw(ctx, prompt, candidates, 1, llm.OutputText)
}

func buildSummarizationPrompt(entries []session.ConversationEntry, summaryLength int) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Summarize the following conversation in at most %d words, preserving decisions and open questions:", summaryLength))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Sender, e.Message))
	}
	return strings.Join(lines, "\n")
}
