package llm

import "context"

// Vendor adapts one LLM backend to the client's flat request/response
// contract. Implementations live in internal/llm/providers and must be
// safe for concurrent use.
type Vendor interface {
	// Name returns the vendor's registry key, e.g. "anthropic".
	Name() string

	// Complete sends req and returns the raw text of the model's reply.
	// A non-nil *Error distinguishes network/api/timeout failures so the
	// client can decide whether to retry this vendor or advance to the
	// next candidate.
	Complete(ctx context.Context, req Request) (string, error)
}
