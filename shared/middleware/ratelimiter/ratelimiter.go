// Package ratelimiter is a per-client token bucket.
package ratelimiter

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// ClientRateLimiter keeps one bucket per client key. Buckets idle for longer
// than expiration are dropped by the next sweep, which runs at most once per
// expiration period from within Allow.
type ClientRateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	capacity   float64
	expiration time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

func New(rate, capacity float64, expiration time.Duration) *ClientRateLimiter {
	return NewWithClock(rate, capacity, expiration, time.Now)
}

func NewWithClock(rate, capacity float64, expiration time.Duration, now func() time.Time) *ClientRateLimiter {
	return &ClientRateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		capacity:   capacity,
		expiration: expiration,
		lastSweep:  now(),
		now:        now,
	}
}

// Allow takes a token from the client's bucket.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.expiration {
		l.sweep(now)
	}

	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[client] = b
	}

	b.tokens = min(l.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*l.rate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *ClientRateLimiter) sweep(now time.Time) {
	for client, b := range l.buckets {
		if now.Sub(b.lastRefill) >= l.expiration {
			delete(l.buckets, client)
		}
	}
	l.lastSweep = now
}

// Len reports the number of tracked clients.
func (l *ClientRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
