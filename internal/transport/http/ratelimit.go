package http

import "time"

// rateLimiter caps inbound events per connection within a fixed window.
// It is consulted only from the connection's read loop, so no locking.
type rateLimiter struct {
	limit       int
	counter     int
	window      time.Duration
	windowStart time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:       limit,
		window:      time.Minute,
		windowStart: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := time.Now()
	if now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
