package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long the caller should wait before the next attempt
	// is guaranteed a fresh slot. Zero when the request was allowed.
	RetryAfter time.Duration
}

// Limiter answers whether one more request under the given key fits inside
// the window. Implementations count the request when they allow it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
