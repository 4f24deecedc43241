// Package ratelimit provides a fixed-window rate limiter for a single
// entity, such as one websocket connection's event stream.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts events in the current window and denies the overflow.
type Limiter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	rate        int
	window      time.Duration
}

// New creates a Limiter that allows rate events per window.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		rate:        rate,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow reports whether one more event fits in the current window. The
// window restarts lazily on the first call after it elapses.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
	l.count++
	return l.count <= l.rate
}
