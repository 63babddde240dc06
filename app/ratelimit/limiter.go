// Package ratelimit implements a sliding-window rate limiter keyed by client identity.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most max requests per identity within any trailing window.
// Unlike a fixed-bucket counter the window boundary is recomputed on every check.
type Limiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

type Option func(*Limiter)

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter. A max of zero or less disables limiting.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:      max,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request from identity is admitted and records it if so.
func (l *Limiter) Allow(identity string) bool {
	if l.max <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(l.requests[identity], now)

	if len(recent) >= l.max {
		l.requests[identity] = recent
		return false
	}

	l.requests[identity] = append(recent, now)
	return true
}

// Prune drops identities with no requests left in the window and returns how many were removed.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for identity, timestamps := range l.requests {
		recent := l.prune(timestamps, now)
		if len(recent) == 0 {
			delete(l.requests, identity)
			removed++
			continue
		}
		l.requests[identity] = recent
	}
	return removed
}

// Len returns the number of identities currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// prune expects timestamps in ascending order. Caller must hold the lock.
func (l *Limiter) prune(timestamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return timestamps
	}
	return append(timestamps[:0:0], timestamps[i:]...)
}
