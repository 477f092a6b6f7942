// Package credits specifies the check-then-deduct contract tool handlers
// and the tool execution step consume. Nothing in this module implements
// it beyond NoopCredits; a host process supplies the real accounting.
package credits

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes a credits-interface failure.
type Kind string

const (
	KindInsufficientCredits Kind = "insufficient_credits"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error is returned by CheckAvailability/Deduct. Its well-known string
// prefix ("insufficient_credits") lets older callers that only inspect
// Error() still recognize the fatal case per spec §4.9 step 4.
type Error struct {
	Kind     Kind
	HTTPHint int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsInsufficientCredits reports whether err is, or wraps, a credits
// error of kind InsufficientCredits.
func IsInsufficientCredits(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindInsufficientCredits
	}
	return false
}

// DeductParams names one billable deduction.
type DeductParams struct {
	UserID         string
	OrganizationID *string
	Amount         int64
	ActionSource   string
	ActionType     string
	EntityID       *string
}

// DeductResult reports a deduction's before/after balance.
type DeductResult struct {
	Previous int64
	New      int64
	Deducted int64
}

// Interface is the credits contract consumed by tool handlers and
// internal/toolexec. The loop itself never deducts; it only propagates
// errors handlers return.
type Interface interface {
	CheckAvailability(ctx context.Context, userID string, amount int64, organizationID *string) error
	Deduct(ctx context.Context, params DeductParams) (DeductResult, error)
}

// NoopCredits is a test double that always permits and deducts without
// tracking balances.
type NoopCredits struct{}

func (NoopCredits) CheckAvailability(ctx context.Context, userID string, amount int64, organizationID *string) error {
	return nil
}

func (NoopCredits) Deduct(ctx context.Context, params DeductParams) (DeductResult, error) {
	return DeductResult{Previous: 0, New: 0, Deducted: params.Amount}, nil
}
