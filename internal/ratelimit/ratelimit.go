// Package ratelimit implements per-identity attempt limiting with a
// sliding-window-by-reset bucket: the first attempt opens a window, every
// attempt in the window is counted, and the bucket resets lazily once the
// window has passed. There is no background sweep.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

type bucket struct {
	windowStart  time.Time
	attemptCount int
	resetAt      time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter enforces a maximum number of attempts per identity per window.
// Check-and-consume is atomic per identity; different identities never
// contend on the same shard lock unless they hash together.
type Limiter struct {
	window      time.Duration
	maxAttempts int
	shards      [shardCount]*shard

	// now is swappable for tests.
	now func() time.Time
}

// Decision is the outcome of a single consuming check.
type Decision struct {
	Allowed          bool
	Remaining        int
	RemainingLockout time.Duration
}

func NewLimiter(window time.Duration, maxAttempts int) *Limiter {
	l := &Limiter{
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

// CheckAndConsume records one attempt for the identity and reports whether it
// is allowed. A denied attempt is still counted against the window read, but
// does not extend or reset it.
func (l *Limiter) CheckAndConsume(identity string) Decision {
	s := l.shardFor(identity)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[identity]
	if !ok || !now.Before(b.resetAt) {
		s.buckets[identity] = &bucket{
			windowStart:  now,
			attemptCount: 1,
			resetAt:      now.Add(l.window),
		}
		return Decision{Allowed: true, Remaining: l.maxAttempts - 1}
	}

	b.attemptCount++
	if b.attemptCount > l.maxAttempts {
		return Decision{
			Allowed:          false,
			Remaining:        0,
			RemainingLockout: b.resetAt.Sub(now),
		}
	}

	return Decision{Allowed: true, Remaining: l.maxAttempts - b.attemptCount}
}

func (l *Limiter) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()%shardCount]
}
