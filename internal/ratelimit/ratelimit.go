// Package ratelimit provides a keyed token-bucket limiter for inbound HTTP
// clients. Buckets that sit idle are evicted so the key space stays bounded
// on a long-running server.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewireapp/rewire-server/internal/clock"
)

// DefaultIdleTTL is how long a key may go unused before its bucket is dropped.
const DefaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   clock.Clock

	done     chan struct{}
	stopOnce sync.Once
}

// Option tunes a limiter.
type Option func(*KeyedRateLimiter)

// WithIdleTTL sets how long unused buckets survive. Zero or negative keeps
// them forever.
func WithIdleTTL(ttl time.Duration) Option {
	return func(krl *KeyedRateLimiter) { krl.idleTTL = ttl }
}

// WithClock replaces the wall clock used for idle tracking.
func WithClock(c clock.Clock) Option {
	return func(krl *KeyedRateLimiter) { krl.clock = c }
}

// New creates a keyed limiter allowing rps requests per second per key with
// the given burst.
func New(rps float64, burst int, opts ...Option) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		clock:   clock.System{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(krl)
	}

	if krl.idleTTL > 0 {
		go krl.cleanupLoop(krl.idleTTL / 2)
	}

	return krl
}

// PerMinute converts a requests-per-minute budget into a limiter.
func PerMinute(perMinute, burst int, opts ...Option) *KeyedRateLimiter {
	return New(float64(perMinute)/60, burst, opts...)
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.limiterFor(key).AllowN(krl.clock.Now(), 1)
}

// Reserve reports whether a request may proceed and, if not, how long the
// caller should wait before retrying.
func (krl *KeyedRateLimiter) Reserve(key string) (bool, time.Duration) {
	now := krl.clock.Now()
	r := krl.limiterFor(key).ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.limiterFor(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.entries)
}

func (krl *KeyedRateLimiter) limiterFor(key string) *rate.Limiter {
	now := krl.clock.Now()

	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, ok := krl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Evict drops buckets idle for longer than the TTL and returns how many were
// removed.
func (krl *KeyedRateLimiter) Evict() int {
	if krl.idleTTL <= 0 {
		return 0
	}
	cutoff := krl.clock.Now().Add(-krl.idleTTL)

	krl.mu.Lock()
	defer krl.mu.Unlock()

	removed := 0
	for key, e := range krl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(krl.entries, key)
			removed++
		}
	}
	return removed
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			krl.Evict()
		case <-krl.done:
			return
		}
	}
}
