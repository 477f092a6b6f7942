// Package loop drives the research agent's core cycle: fetch session,
// check termination, compact, process a turn, execute tools, emit
// progress, repeat until the turn is final or a fatal error occurs
// (C10). RunSync and RunAsync share one unexported iteration body,
// grounded line-for-line on the original's run_research_loop_sync.rs.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/compaction"
	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/metrics"
	"github.com/Shahroz/reels-ai-sub002/internal/progress"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/termination"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
	"github.com/Shahroz/reels-ai-sub002/internal/toolexec"
	"github.com/Shahroz/reels-ai-sub002/internal/turn"
	"github.com/Shahroz/reels-ai-sub002/internal/ws"
)

// Orchestrator bundles every dependency a loop iteration needs. It plays
// the role spec.md's AppState plays for the core: the single owning
// handle the loop, compactor, and tool execution step share. It lives
// here, at the top of the internal package graph, rather than inside
// internal/session, because session.AppState would need to reference
// internal/tools.Dispatcher, and internal/tools.Handler already
// references session.ToolChoice/session.ID — embedding a Dispatcher
// field directly on session.Data's owner would close that cycle.
type Orchestrator struct {
	Store      *session.Store
	LLM        *llm.Client
	Dispatcher *tools.Dispatcher
	Schema     *tools.AggregatedSchema
	Config     *config.Config
	Observer   *ws.Hub
	Credits    tools.Deps // carries Sessions/Observer/Credits for handler dispatch
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// RunSync drives the loop to completion and returns the final history.
func (o *Orchestrator) RunSync(ctx context.Context, id session.ID, researchGoal string, sink progress.Sink) ([]session.ConversationEntry, error) {
	history, err := o.run(ctx, id, researchGoal, sink, true)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// RunAsync drives the loop in the background, updating status and
// emitting progress events; it does not return history.
func (o *Orchestrator) RunAsync(ctx context.Context, id session.ID, researchGoal string, sink progress.Sink) {
	go func() {
		if _, err := o.run(ctx, id, researchGoal, sink, false); err != nil {
			o.logger().Warn("loop: run_async terminated with error", "session_id", id, "error", err)
		}
	}()
}

// Interrupt sets the out-of-band cancel flag consulted at the next
// iteration boundary.
func (o *Orchestrator) Interrupt(id session.ID) error {
	return o.Store.SetInterrupted(id, true)
}

func (o *Orchestrator) run(ctx context.Context, id session.ID, researchGoal string, sink progress.Sink, sync bool) ([]session.ConversationEntry, *Error) {
	if err := o.Store.UpdateStatus(id, session.Status{Kind: session.StatusRunning}); err != nil {
		return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id), Cause: err}
	}

	data := o.Store.GetSession(id)
	if data == nil {
		return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id)}
	}

	if len(data.History) == 0 {
		entry := session.ConversationEntry{
			ID:        session.NewID(),
			Sender:    session.SenderUser,
			Message:   researchGoal,
			Timestamp: time.Now().UTC(),
		}
		if err := o.Store.AddConversationEntry(id, entry); err != nil {
			return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id), Cause: err}
		}
		o.emit(ctx, sink, progress.Update{Sender: "user", Message: researchGoal, Timestamp: entry.Timestamp})
	}

	for {
		data := o.Store.GetSession(id)
		if data == nil {
			_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
			return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id)}
		}

		if reason := termination.Check(data, o.Config); reason != nil {
			return o.handleTermination(id, reason, sync)
		}

		if err := compaction.Compact(ctx, o.Store, o.LLM, o.Config.LLM.ConversationModels, id, data.Config.CompactionPolicy); err != nil {
			o.observeCompaction("error")
			_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
			return nil, &Error{Kind: ErrorCompactionFailed, Message: fmt.Sprintf("Compaction failed for session %s: %v", id, err), Cause: err}
		}
		o.observeCompaction("success")
		data = o.Store.GetSession(id)

		response, err := turn.Process(ctx, data, o.LLM, o.Config, o.Schema)
		if err != nil {
			_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
			return nil, o.classifyTurnError(id, err)
		}

		agentEntry := session.ConversationEntry{
			ID:        session.NewID(),
			Sender:    session.SenderAgent,
			Message:   response.UserAnswer,
			Tools:     response.Actions,
			Timestamp: time.Now().UTC(),
		}
		if err := o.Store.AddConversationEntry(id, agentEntry); err != nil {
			_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
			return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id), Cause: err}
		}
		o.observeTurn("success")
		o.emit(ctx, sink, progress.Update{Sender: "agent", Message: response.UserAnswer, Timestamp: agentEntry.Timestamp})

		if len(response.Actions) > 0 {
			o.emit(ctx, sink, progress.Update{Sender: "tool", Message: fmt.Sprintf("Using %d tool(s)", len(response.Actions)), Timestamp: time.Now().UTC()})

			execErr := toolexec.Execute(ctx, o.Store, o.Dispatcher, o.Credits, id, response.Actions, toolexec.Config{Concurrency: o.Config.ToolExecConcurrency})
			if execErr != nil {
				var creditsErr *toolexec.ErrCreditsExhausted
				if asCreditsError(execErr, &creditsErr) {
					_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
					return nil, &Error{Kind: ErrorInsufficientCredits, Message: fmt.Sprintf("Session %s ran out of credits: %v", id, creditsErr), Cause: execErr}
				}
				o.logger().Warn("loop: tool execution step reported a non-fatal error", "session_id", id, "error", execErr)
			}
		}

		if response.IsFinal {
			if err := o.Store.UpdateStatus(id, session.Status{Kind: session.StatusCompleted}); err != nil {
				return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s not found.", id), Cause: err}
			}
			if sync {
				final := o.Store.GetSession(id)
				return final.History, nil
			}
			return nil, nil
		}
	}
}

func (o *Orchestrator) handleTermination(id session.ID, reason *termination.Reason, sync bool) ([]session.ConversationEntry, *Error) {
	switch reason.Kind {
	case termination.KindTimeout:
		_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusTimeout})
		return nil, &Error{Kind: ErrorTimeout, Message: fmt.Sprintf("Session %s timed out.", id)}
	case termination.KindInterrupted:
		_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusInterrupted})
		return nil, &Error{Kind: ErrorInterrupted, Message: fmt.Sprintf("Session %s interrupted.", id)}
	case termination.KindAlreadyTerminal:
		return nil, &Error{Kind: ErrorSessionNotFound, Message: fmt.Sprintf("Session %s loop entered with already terminal status: %s.", id, reason.Status)}
	case termination.KindConfigError:
		_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
		return nil, &Error{Kind: ErrorConfig, Message: fmt.Sprintf("Configuration error: %s", reason.Detail)}
	default:
		_ = o.Store.UpdateStatus(id, session.Status{Kind: session.StatusError})
		return nil, &Error{Kind: ErrorConfig, Message: fmt.Sprintf("Unknown termination reason for session %s.", id)}
	}
}

func (o *Orchestrator) classifyTurnError(id session.ID, err error) *Error {
	var turnErr *turn.Error
	if e, ok := err.(*turn.Error); ok {
		turnErr = e
	}
	if turnErr == nil {
		return &Error{Kind: ErrorLlmCallFailed, Message: fmt.Sprintf("Turn failed for session %s: %v", id, err), Cause: err}
	}

	switch turnErr.Kind {
	case turn.ErrorPromptBuild:
		return &Error{Kind: ErrorPromptBuild, Message: fmt.Sprintf("Prompt build failed for session %s: %v", id, turnErr), Cause: err}
	case turn.ErrorConfig:
		return &Error{Kind: ErrorConfig, Message: fmt.Sprintf("Configuration error: %v", turnErr), Cause: err}
	default:
		var llmErr *llm.Error
		if e, ok := turnErr.Cause.(*llm.Error); ok {
			llmErr = e
		}
		if llmErr != nil && llmErr.Kind == llm.ErrorValidation {
			return &Error{Kind: ErrorLlmValidationFailed, Message: fmt.Sprintf("LLM response validation failed for session %s: %v", id, llmErr), Cause: err}
		}
		return &Error{Kind: ErrorLlmCallFailed, Message: fmt.Sprintf("LLM call failed for session %s: %v", id, turnErr), Cause: err}
	}
}

func (o *Orchestrator) emit(ctx context.Context, sink progress.Sink, update progress.Update) {
	if sink == nil {
		return
	}
	if err := sink(ctx, update); err != nil {
		o.logger().Debug("loop: progress sink returned an error, ignoring", "error", err)
	}
}

func (o *Orchestrator) observeTurn(outcome string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (o *Orchestrator) observeCompaction(outcome string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.CompactionCounter.WithLabelValues(outcome).Inc()
}

func asCreditsError(err error, target **toolexec.ErrCreditsExhausted) bool {
	e, ok := err.(*toolexec.ErrCreditsExhausted)
	if !ok {
		return false
	}
	*target = e
	return true
}
