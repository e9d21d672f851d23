package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often the memory limiter scans for dead keys.
const sweepEvery = 4096

// MemoryLimiter is a process-local sliding window limiter. Each key keeps the
// timestamps of its requests inside the current window; a request is allowed
// when fewer than limit timestamps remain after pruning. Counts are not shared
// across processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	calls   int
	now     func() time.Time
}

// NewMemoryLimiter returns an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records the request and reports whether it fits inside the window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	stamps := prune(l.buckets[key], cutoff)

	l.calls++
	if l.calls >= sweepEvery {
		l.calls = 0
		l.sweep(cutoff)
	}

	if len(stamps) >= limit {
		l.buckets[key] = stamps
		oldest := stamps[0]
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: oldest.Add(window).Sub(now),
		}, nil
	}

	stamps = append(stamps, now)
	l.buckets[key] = stamps
	return Decision{Allowed: true, Remaining: limit - len(stamps)}, nil
}

// prune drops timestamps at or before the cutoff. Slices are appended in time
// order, so the first kept index bounds the live region.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[idx:]...)
}

func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, stamps := range l.buckets {
		live := prune(stamps, cutoff)
		if len(live) == 0 {
			delete(l.buckets, key)
			continue
		}
		l.buckets[key] = live
	}
}
