package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/jsonsalvage"
	"golang.org/x/time/rate"
)

// Client iterates an ordered list of (vendor, model) candidates, retrying
// each with exponential backoff before advancing to the next, per
// spec.md §4.2.
type Client struct {
	vendors map[string]Vendor

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// VendorRateLimit caps requests/sec per vendor. Zero means unlimited.
	VendorRateLimit rate.Limit
}

// NewClient builds a client over the given vendor adapters, keyed by
// Vendor.Name().
func NewClient(vendors ...Vendor) *Client {
	m := make(map[string]Vendor, len(vendors))
	for _, v := range vendors {
		m[v.Name()] = v
	}
	return &Client{vendors: m, limiters: make(map[string]*rate.Limiter)}
}

func (c *Client) limiterFor(vendor string) *rate.Limiter {
	if c.VendorRateLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[vendor]
	if !ok {
		l = rate.NewLimiter(c.VendorRateLimit, 1)
		c.limiters[vendor] = l
	}
	return l
}

// Raw sends prompt to the first candidate that produces a usable response,
// retrying each candidate up to retries+1 times, and returns its raw text.
func (c *Client) Raw(ctx context.Context, prompt string, candidates []VendorModel, retries int, format OutputFormat) (string, error) {
	if len(c.vendors) == 0 || len(candidates) == 0 {
		return "", &Error{Kind: ErrorConfig, Cause: fmt.Errorf("no candidate (vendor, model) pairs configured")}
	}

	var lastErr error
	for _, candidate := range candidates {
		vendor, ok := c.vendors[candidate.Vendor]
		if !ok {
			lastErr = &Error{Kind: ErrorConfig, Vendor: candidate.Vendor, Model: candidate.Model,
				Cause: fmt.Errorf("vendor %q not registered", candidate.Vendor)}
			continue
		}

		for attempt := 1; attempt <= retries+1; attempt++ {
			if limiter := c.limiterFor(candidate.Vendor); limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return "", &Error{Kind: ErrorTimeout, Vendor: candidate.Vendor, Model: candidate.Model, Cause: err}
				}
			}

			text, err := vendor.Complete(ctx, Request{
				Model:    candidate.Model,
				Messages: []Message{{Role: "user", Content: prompt}},
				Format:   format,
			})
			if err == nil {
				return text, nil
			}

			lastErr = err
			if ctx.Err() != nil {
				return "", &Error{Kind: ErrorTimeout, Vendor: candidate.Vendor, Model: candidate.Model, Cause: ctx.Err()}
			}

			var vendorErr *Error
			if asError(err, &vendorErr) && vendorErr.Kind == ErrorAPI && !isRetryableStatus(vendorErr.StatusCode) {
				// Non-retryable client error: stop retrying this vendor,
				// advance to the next candidate immediately.
				break
			}

			if attempt <= retries {
				policy := defaultBackoff
				if asError(err, &vendorErr) && vendorErr.Kind == ErrorAPI && vendorErr.StatusCode == 429 {
					policy = rateLimitBackoff
				}
				delay := computeBackoff(policy, attempt)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return "", &Error{Kind: ErrorTimeout, Vendor: candidate.Vendor, Model: candidate.Model, Cause: ctx.Err()}
				}
			}
		}
	}

	if lastErr == nil {
		lastErr = &Error{Kind: ErrorConfig, Cause: fmt.Errorf("no candidates attempted")}
	}
	return "", lastErr
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

// Typed sends prompt, salvages a JSON document from the reply, and
// validates it against T's reflected JSON schema. A salvage or validation
// failure consumes a retry slot on the current candidate before the next
// attempt per spec.md §4.2.
func Typed[T any](ctx context.Context, c *Client, prompt string, candidates []VendorModel, retries int) (T, error) {
	var zero T
	if len(c.vendors) == 0 || len(candidates) == 0 {
		return zero, &Error{Kind: ErrorConfig, Cause: fmt.Errorf("no candidate (vendor, model) pairs configured")}
	}

	t := reflect.TypeOf(zero)

	var lastErr error
	for _, candidate := range candidates {
		vendor, ok := c.vendors[candidate.Vendor]
		if !ok {
			lastErr = &Error{Kind: ErrorConfig, Vendor: candidate.Vendor, Model: candidate.Model,
				Cause: fmt.Errorf("vendor %q not registered", candidate.Vendor)}
			continue
		}

		for attempt := 1; attempt <= retries+1; attempt++ {
			if limiter := c.limiterFor(candidate.Vendor); limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return zero, &Error{Kind: ErrorTimeout, Vendor: candidate.Vendor, Model: candidate.Model, Cause: err}
				}
			}

			text, err := vendor.Complete(ctx, Request{
				Model:    candidate.Model,
				Messages: []Message{{Role: "user", Content: prompt}},
				Format:   OutputJSON,
			})
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					return zero, &Error{Kind: ErrorTimeout, Vendor: candidate.Vendor, Model: candidate.Model, Cause: ctx.Err()}
				}
				var vendorErr *Error
				if asError(err, &vendorErr) && vendorErr.Kind == ErrorAPI && !isRetryableStatus(vendorErr.StatusCode) {
					break
				}
				if attempt <= retries {
					sleepBeforeRetry(ctx, err, attempt)
					continue
				}
				continue
			}

			salvaged, ok := jsonsalvage.Salvage(text)
			if !ok {
				lastErr = &Error{Kind: ErrorParse, Vendor: candidate.Vendor, Model: candidate.Model}
				if attempt <= retries {
					sleepBeforeRetry(ctx, lastErr, attempt)
				}
				continue
			}

			if err := validateAgainstSchema(t, salvaged); err != nil {
				lastErr = &Error{Kind: ErrorValidation, Vendor: candidate.Vendor, Model: candidate.Model, Cause: err}
				if attempt <= retries {
					sleepBeforeRetry(ctx, lastErr, attempt)
				}
				continue
			}

			var value T
			if err := json.Unmarshal(salvaged, &value); err != nil {
				lastErr = &Error{Kind: ErrorValidation, Vendor: candidate.Vendor, Model: candidate.Model, Cause: err}
				continue
			}
			return value, nil
		}
	}

	if lastErr == nil {
		lastErr = &Error{Kind: ErrorConfig, Cause: fmt.Errorf("no candidates attempted")}
	}
	return zero, lastErr
}

func sleepBeforeRetry(ctx context.Context, err error, attempt int) {
	policy := defaultBackoff
	var vendorErr *Error
	if asError(err, &vendorErr) && vendorErr.Kind == ErrorAPI && vendorErr.StatusCode == 429 {
		policy = rateLimitBackoff
	}
	delay := computeBackoff(policy, attempt)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
