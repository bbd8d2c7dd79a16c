// Package ratelimit provides per-client token bucket rate limiting for the HTTP API.
package ratelimit

import (
	"math"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultStaleAfter      = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int // bucket capacity
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate            rate.Limit
	burst           int
	staleAfter      time.Duration
	cleanupInterval time.Duration
	trustedProxies  []netip.Prefix

	now func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStaleAfter sets how long an idle bucket is kept.
func WithStaleAfter(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.staleAfter = d
		}
	}
}

// WithCleanupInterval sets how often Run evicts idle buckets.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.cleanupInterval = d
		}
	}
}

// WithTrustedProxies lists the proxies whose X-Forwarded-For header picks the
// client key. Without it the remote address is always used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(l *Limiter) {
		l.trustedProxies = prefixes
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter refilling rps tokens per second into buckets of size burst.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		buckets:         make(map[string]*bucket),
		rate:            rate.Limit(rps),
		burst:           burst,
		staleAfter:      defaultStaleAfter,
		cleanupInterval: defaultCleanupInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow takes one token from the bucket of key.
func (l *Limiter) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := Result{Limit: l.burst}
	reservation := b.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	res.Allowed = reservation.OK() && delay == 0
	if !res.Allowed {
		reservation.CancelAt(now)
		res.RetryAfter = max(delay, time.Second)
	}
	res.Remaining = max(int(math.Floor(b.limiter.TokensAt(now))), 0)
	return res
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup drops buckets idle for longer than the stale period.
func (l *Limiter) Cleanup() {
	threshold := l.now().Add(-l.staleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(threshold) {
			delete(l.buckets, key)
		}
	}
}

// Run evicts idle buckets until done is closed.
func (l *Limiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-done:
			return
		}
	}
}
