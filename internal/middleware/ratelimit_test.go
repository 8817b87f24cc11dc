package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   3,
		span:    time.Hour,
	}

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied inside the limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request over the limit allowed")
	}

	// Another client has its own window.
	if !rl.allow("10.0.0.2") {
		t.Fatal("independent client denied")
	}
}

func TestRateLimiterResetsAfterSpan(t *testing.T) {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   1,
		span:    time.Hour,
	}

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("second request allowed inside the window")
	}

	// Age the window past its span; the next request opens a fresh one.
	rl.mu.Lock()
	rl.windows["10.0.0.1"].startAt = time.Now().Add(-2 * time.Hour)
	rl.mu.Unlock()

	if !rl.allow("10.0.0.1") {
		t.Fatal("request denied after the window expired")
	}
}

func TestRateLimiterEvictsStaleWindows(t *testing.T) {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   1,
		span:    time.Minute,
	}

	rl.allow("10.0.0.1")
	rl.mu.Lock()
	rl.windows["10.0.0.1"].startAt = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evictExpired()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.windows) != 0 {
		t.Fatalf("stale windows remaining = %d, want 0", len(rl.windows))
	}
}
