package utils

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum delay between navigations so one browser
// session never hammers the target site.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	delay    time.Duration
}

// NewRateLimiter creates a new RateLimiter with the given minimum delay.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{delay: delay}
}

// Wait blocks until enough time has passed since the last call.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastCall)
	if elapsed < r.delay {
		time.Sleep(r.delay - elapsed)
	}
	r.lastCall = time.Now()
}
