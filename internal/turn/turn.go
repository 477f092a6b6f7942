// Package turn builds a prompt, calls the typed LLM client, and parses
// the structured agent response for a single research-loop turn (C8).
// Persisting the resulting Agent entry is the orchestrator's
// responsibility, so it can coordinate with tool-execution persistence.
package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/prompt"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
)

// ErrorKind distinguishes why a turn failed.
type ErrorKind string

const (
	ErrorPromptBuild ErrorKind = "prompt_build_error"
	ErrorLlmCall     ErrorKind = "llm_call_failed"
	ErrorConfig      ErrorKind = "config_error"
	ErrorInternal    ErrorKind = "internal_error"
)

// Error is the typed error Process returns.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("turn: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Process implements spec.md §4.8: build the prompt, flatten it, call
// the typed LLM client, and return the parsed response.
func Process(ctx context.Context, data *session.Data, client *llm.Client, cfg *config.Config, schema *tools.AggregatedSchema) (session.LlmAgentResponse, error) {
	messages, err := prompt.BuildLLMPrompt(data, schema)
	if err != nil {
		if errors.Is(err, prompt.ErrEmptyHistory) {
			return session.LlmAgentResponse{}, &Error{Kind: ErrorPromptBuild, Cause: err}
		}
		return session.LlmAgentResponse{}, &Error{Kind: ErrorInternal, Cause: err}
	}

	if len(cfg.LLM.ConversationModels) == 0 {
		return session.LlmAgentResponse{}, &Error{Kind: ErrorConfig, Cause: fmt.Errorf("conversation_models is empty")}
	}

	flat := prompt.Flatten(messages)

	// retries is fixed at 1 per the turn processor's contract, independent
	// of any client-wide retry default; callers who want the llm package's
	// own retries must go through Client.Raw/Typed directly.
	const retries = 1
	response, err := llm.Typed[session.LlmAgentResponse](ctx, client, flat, cfg.LLM.ConversationModels, retries)
	if err != nil {
		return session.LlmAgentResponse{}, &Error{Kind: ErrorLlmCall, Cause: err}
	}

	return response, nil
}
