package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket. Callers hold the limiter lock.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Each key may burst up to Burst
// requests and regains PerMinute tokens every minute. Buckets idle for longer
// than the TTL are dropped on the next sweep.
type Limiter struct {
	burst     float64
	perMinute float64
	perSecond float64
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter allowing burst requests per key, refilled at
// perMinute tokens a minute
func NewLimiter(burst int, perMinute float64, ttl time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		burst:     float64(burst),
		perMinute: perMinute,
		perSecond: perMinute / 60,
		ttl:       ttl,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow takes a token from key's bucket and reports whether one was left
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.perSecond
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset forgets key, giving it a full bucket again
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweep(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.lastSweep) < l.ttl {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
