package ratelimit

import (
	"context"
	"time"
)

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisLimiter shares counts across gateway instances through a fixed window
// counter in Redis. The window resets when the key expires, so a burst that
// straddles a boundary can briefly exceed the limit; the shared count is worth
// that trade when more than one instance serves traffic.
type RedisLimiter struct {
	store counterStore
}

// NewRedisLimiter wraps the provided counter store.
func NewRedisLimiter(store counterStore) *RedisLimiter {
	return &RedisLimiter{store: store}
}

// Allow increments the window counter and compares it against the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}

	count, err := l.store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return Decision{}, err
	}

	if count > int64(limit) {
		return Decision{Allowed: false, RetryAfter: window}, nil
	}

	remaining := limit - int(count)
	return Decision{Allowed: true, Remaining: remaining}, nil
}
