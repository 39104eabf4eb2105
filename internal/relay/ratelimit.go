package relay

import (
	"sync"
	"time"
)

const (
	limitWindow    = time.Minute
	limitPerWindow = 600
)

// rateLimiter is a per-connection sliding-window limiter. Editing traffic is
// bursty (one envelope per keystroke), so the window is generous; the limit
// exists to stop a runaway client from flooding a room.
type rateLimiter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{windowStart: time.Now()}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.windowStart) >= limitWindow {
		rl.count = 1
		rl.windowStart = now
		return true
	}
	if rl.count >= limitPerWindow {
		return false
	}
	rl.count++
	return true
}
