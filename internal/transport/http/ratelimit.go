package http

import "time"

// rateLimiter counts frames in fixed one-minute windows. It is owned by a
// single read loop and needs no locking.
type rateLimiter struct {
	limit       int
	window      time.Duration
	counter     int
	windowStart time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{limit: 0}
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
	}
}

func (r *rateLimiter) allow(now time.Time) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	if now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
