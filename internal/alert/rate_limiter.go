package alert

import (
	"sync"
	"time"
)

// RateLimiter caps how many alert posts hit a notification target within a
// sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *RateLimiter) Allow(target string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	requests := rl.requests[target]
	var valid []time.Time
	for _, t := range requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[target] = valid
		return false
	}

	rl.requests[target] = append(valid, now)
	return true
}

// GetRetryDelay returns how long until the oldest in-window request ages out,
// padded a little so the retry lands on the open side of the window.
func (rl *RateLimiter) GetRetryDelay(target string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.requests[target]
	if len(requests) == 0 {
		return 0
	}

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var valid []time.Time
	for _, t := range requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) < rl.limit {
		return 0
	}

	oldest := valid[0]
	for _, t := range valid {
		if t.Before(oldest) {
			oldest = t
		}
	}

	delay := oldest.Add(rl.window).Sub(now)
	if delay < 0 {
		return 0
	}

	return delay + 100*time.Millisecond
}

func (rl *RateLimiter) Reset(target string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.requests, target)
}
