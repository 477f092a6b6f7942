// Package termination evaluates the research loop's fatal and soft
// termination predicates in the declared order (C7).
package termination

import (
	"fmt"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

// Kind tags which predicate fired.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindInterrupted     Kind = "interrupted"
	KindAlreadyTerminal Kind = "already_terminal"
	KindConfigError     Kind = "config_error"
)

// Reason is the first matching termination predicate, or nil when the
// orchestrator should proceed.
type Reason struct {
	Kind   Kind
	Status session.StatusKind // set only for KindAlreadyTerminal
	Detail string             // set only for KindConfigError
}

func (r *Reason) String() string {
	switch r.Kind {
	case KindTimeout:
		return "timeout"
	case KindInterrupted:
		return "interrupted"
	case KindAlreadyTerminal:
		return fmt.Sprintf("already terminal: %s", r.Status)
	case KindConfigError:
		return fmt.Sprintf("configuration error: %s", r.Detail)
	default:
		return string(r.Kind)
	}
}

// Check evaluates, in order: AlreadyTerminal, Timeout, Interrupted,
// ConfigError. A nil return means the orchestrator should proceed with
// this iteration.
func Check(data *session.Data, cfg *config.Config) *Reason {
	if data.Status.IsTerminal() {
		return &Reason{Kind: KindAlreadyTerminal, Status: data.Status.Kind}
	}

	if time.Since(data.CreatedAt) > data.Config.TimeLimit {
		return &Reason{Kind: KindTimeout}
	}

	if data.Interrupted {
		return &Reason{Kind: KindInterrupted}
	}

	if len(cfg.LLM.ConversationModels) == 0 {
		return &Reason{Kind: KindConfigError, Detail: "conversation_models is empty"}
	}

	return nil
}
