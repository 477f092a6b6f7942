package llm

import "fmt"

// ErrorKind distinguishes the failure modes the typed client must surface
// distinctly per spec.md §4.2.
type ErrorKind string

const (
	ErrorNetwork      ErrorKind = "network"
	ErrorAPI          ErrorKind = "api"
	ErrorParse        ErrorKind = "parse"
	ErrorValidation   ErrorKind = "validation"
	ErrorConfig       ErrorKind = "config"
	ErrorTimeout      ErrorKind = "timeout"
)

// Error is the typed error returned by Raw/Typed.
type Error struct {
	Kind       ErrorKind
	Vendor     string
	Model      string
	StatusCode int
	Body       string
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorAPI:
		return fmt.Sprintf("llm: api error from %s/%s: status=%d body=%s", e.Vendor, e.Model, e.StatusCode, e.Body)
	case ErrorNetwork:
		return fmt.Sprintf("llm: network error calling %s/%s: %v", e.Vendor, e.Model, e.Cause)
	case ErrorParse:
		return fmt.Sprintf("llm: failed to salvage JSON from %s/%s response", e.Vendor, e.Model)
	case ErrorValidation:
		return fmt.Sprintf("llm: schema validation failed for %s/%s response: %v", e.Vendor, e.Model, e.Cause)
	case ErrorConfig:
		return fmt.Sprintf("llm: configuration error: %v", e.Cause)
	case ErrorTimeout:
		return fmt.Sprintf("llm: timed out calling %s/%s: %v", e.Vendor, e.Model, e.Cause)
	default:
		return fmt.Sprintf("llm: error (%s) from %s/%s: %v", e.Kind, e.Vendor, e.Model, e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// isRetryableStatus reports whether an HTTP status from a vendor should be
// retried against the same model (429 and 5xx) vs. advancing immediately
// to the next candidate (other 4xx).
func isRetryableStatus(status int) bool {
	if status == 429 {
		return true
	}
	return status >= 500 && status < 600
}
