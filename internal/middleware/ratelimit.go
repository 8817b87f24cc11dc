package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invigo/invigo-backend/internal/response"
)

// RateLimiter is a per-IP fixed-window limiter. Heartbeats and answer saves
// from one candidate device stay well under the window; only floods trip it.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	span    time.Duration
}

type window struct {
	count   int
	startAt time.Time
}

// NewRateLimiter creates a RateLimiter allowing limit requests per span.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		span:    span,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.evictExpired()
		}
	}()

	return rl
}

// Middleware returns a Gin middleware that rate-limits requests by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.startAt) >= rl.span {
		rl.windows[ip] = &window{count: 1, startAt: now}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) evictExpired() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, w := range rl.windows {
		if now.Sub(w.startAt) > 2*rl.span {
			delete(rl.windows, ip)
		}
	}
}
