// Package toolexec runs a turn's proposed tool actions against the
// dispatcher, persisting one Tool entry per result in completion order
// (C9).
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/credits"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
)

// Config bounds the concurrency of a single Execute call.
type Config struct {
	Concurrency int
}

// ErrCreditsExhausted is returned, wrapping the handler's error, when a
// handler reports an insufficient-credits failure (a credits.Error of that
// kind, or any error whose text starts with "insufficient_credits"), which
// the orchestrator must treat as fatal per spec.md §4.9 step 4.
type ErrCreditsExhausted struct {
	Tool  string
	Cause error
}

func (e *ErrCreditsExhausted) Error() string {
	return fmt.Sprintf("toolexec: tool %q failed on insufficient credits: %v", e.Tool, e.Cause)
}

func (e *ErrCreditsExhausted) Unwrap() error { return e.Cause }

type result struct {
	order int
	call  session.ToolChoice
	full  session.FullToolResponse
	user  session.UserToolResponse
	err   error
}

// Execute dispatches every action concurrently (bounded by cfg.Concurrency),
// then persists a Tool entry per result in completion order, per spec.md
// §4.9 steps 1-3. It returns the first credits error encountered, if any,
// after all persistence has completed — matching "each handler's result
// must be persisted before the next turn starts."
func Execute(ctx context.Context, store *session.Store, dispatcher *tools.Dispatcher, deps tools.Deps, id session.ID, actions []session.ToolChoice, cfg Config) error {
	if len(actions) == 0 {
		return nil
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make(chan result, len(actions))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, action := range actions {
		wg.Add(1)
		go func(order int, call session.ToolChoice) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			full, user, err := dispatcher.Dispatch(ctx, call, deps, id)
			results <- result{order: order, call: call, full: full, user: user, err: err}
		}(i, action)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstCreditsErr error
	for res := range results {
		entry := entryFor(res)
		if err := store.AddConversationEntry(id, entry); err != nil {
			return fmt.Errorf("toolexec: persist result for %q: %w", res.call.Name, err)
		}
		if res.err != nil && firstCreditsErr == nil && (credits.IsInsufficientCredits(res.err) ||
			strings.HasPrefix(res.err.Error(), string(credits.KindInsufficientCredits))) {
			firstCreditsErr = &ErrCreditsExhausted{Tool: res.call.Name, Cause: res.err}
		}
	}

	return firstCreditsErr
}

func entryFor(res result) session.ConversationEntry {
	entry := session.ConversationEntry{
		ID:        session.NewID(),
		Sender:    session.SenderTool,
		Timestamp: time.Now().UTC(),
	}
	if res.err != nil {
		entry.Message = res.err.Error()
		payload, _ := json.Marshal(map[string]string{"error": res.err.Error()})
		entry.ToolResponse = payload
		return entry
	}
	entry.Message = res.user.Summary
	entry.ToolResponse = res.full.Response
	return entry
}
