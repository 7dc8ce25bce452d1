package services

import (
	"sync"
	"time"
)

// RateLimit is a single fixed-window counter. The window is not sliding:
// the counter restarts the moment the first action after the reset time
// arrives.
type RateLimit struct {
	Count     int
	ResetTime time.Time
}

// RateLimiter keeps one fixed-window counter per connection id. The
// check-and-increment runs under the limiter mutex, so two concurrent
// attempts for the same key cannot both pass on the last slot.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*RateLimit
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*RateLimit),
		now:      time.Now,
	}
}

// Allow reports whether the connection may perform one more action. A
// rejection does not mutate the counter.
func (rl *RateLimiter) Allow(id string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	counter, ok := rl.counters[id]

	if !ok || now.After(counter.ResetTime) {
		rl.counters[id] = &RateLimit{
			Count:     1,
			ResetTime: now.Add(rl.window),
		}
		return true
	}

	if counter.Count >= rl.limit {
		return false
	}

	counter.Count++
	return true
}

// Forget drops the counter of a disconnected connection.
func (rl *RateLimiter) Forget(id string) {
	rl.mu.Lock()
	delete(rl.counters, id)
	rl.mu.Unlock()
}

// Len returns the number of tracked connections.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counters)
}
