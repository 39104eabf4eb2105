package relay

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := newRateLimiter()
	for i := 0; i < limitPerWindow; i++ {
		if !rl.allow() {
			t.Fatalf("request %d rejected inside the window", i)
		}
	}
	if rl.allow() {
		t.Error("request beyond the limit allowed")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter()
	rl.count = limitPerWindow
	if rl.allow() {
		t.Fatal("saturated limiter allowed a request")
	}
	rl.windowStart = time.Now().Add(-limitWindow - time.Second)
	if !rl.allow() {
		t.Error("limiter did not reset after the window elapsed")
	}
}
