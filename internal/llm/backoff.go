package llm

import (
	"math"
	"math/rand"
	"time"
)

// backoffPolicy mirrors the teacher's internal/backoff.BackoffPolicy: an
// exponential curve with proportional jitter, clamped to a ceiling.
type backoffPolicy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// defaultBackoff is spec.md §4.2's policy: ~200ms initial, ~1s cap, with
// jitter.
var defaultBackoff = backoffPolicy{InitialMs: 200, MaxMs: 1000, Factor: 2, Jitter: 0.2}

// rateLimitBackoff is used specifically after a 429, per spec.md §4.2
// ("on 429 specifically, increase initial delay to 1 s").
var rateLimitBackoff = backoffPolicy{InitialMs: 1000, MaxMs: 1000, Factor: 2, Jitter: 0.2}

// computeBackoff calculates the delay for a given attempt (1-indexed)
// using the formula: base = InitialMs * Factor^(attempt-1),
// jitter = base * Jitter * rand(), total = min(MaxMs, base+jitter).
func computeBackoff(policy backoffPolicy, attempt int) time.Duration {
	return computeBackoffWithRand(policy, attempt, rand.Float64()) //nolint:gosec // jitter, not security sensitive
}

func computeBackoffWithRand(policy backoffPolicy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}
