package loop

import "github.com/Shahroz/reels-ai-sub002/internal/session"

// ErrorKind is the closed set of failure kinds the orchestrator can
// surface, per spec.md §7.
type ErrorKind string

const (
	ErrorSessionNotFound      ErrorKind = "session_not_found"
	ErrorConfig               ErrorKind = "config_error"
	ErrorTimeout              ErrorKind = "timeout"
	ErrorInterrupted          ErrorKind = "interrupted"
	ErrorPromptBuild          ErrorKind = "prompt_build_error"
	ErrorLlmCallFailed        ErrorKind = "llm_call_failed"
	ErrorLlmValidationFailed  ErrorKind = "llm_validation_failed"
	ErrorToolNotFound         ErrorKind = "tool_not_found"
	ErrorToolHandlerError     ErrorKind = "tool_handler_error"
	ErrorInsufficientCredits  ErrorKind = "insufficient_credits"
	ErrorCompactionFailed     ErrorKind = "compaction_failed"
)

// TerminalStatus maps an ErrorKind to the orchestrator's response:
// whether it is fatal, and if so which terminal status the session
// transitions to. ToolNotFound and ToolHandlerError are non-fatal: they
// are persisted as a Tool entry and the loop continues, so they report
// fatal=false.
func (k ErrorKind) TerminalStatus() (status session.StatusKind, fatal bool) {
	switch k {
	case ErrorSessionNotFound, ErrorConfig, ErrorPromptBuild, ErrorLlmCallFailed,
		ErrorLlmValidationFailed, ErrorInsufficientCredits, ErrorCompactionFailed:
		return session.StatusError, true
	case ErrorTimeout:
		return session.StatusTimeout, true
	case ErrorInterrupted:
		return session.StatusInterrupted, true
	default:
		return "", false
	}
}

// Error is the typed error RunSync/RunAsync surface.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }
