package api

import (
	"sync"
	"time"
)

// RateLimitConfig holds the per-minute request budgets for each surface.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool
	// AuthRequestsPerMin caps login, logout and user creation attempts.
	AuthRequestsPerMin int
	// APIRequestsPerMin caps general gallery and admin API calls.
	APIRequestsPerMin int
	// FileRequestsPerMin caps the unauthenticated photo streaming route.
	FileRequestsPerMin int
	// TrustProxy enables trusting X-Forwarded-For for client IP detection.
	TrustProxy bool
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:            true,
		AuthRequestsPerMin: 10,
		APIRequestsPerMin:  120,
		FileRequestsPerMin: 300,
		TrustProxy:         false,
	}
}

// bucket tracks how many requests a caller has made in the current window.
type bucket struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts requests per caller in fixed 1-minute windows. Keys
// are opaque strings, typically "ip:<addr>" or "user:<id>".
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  RateLimitConfig
	stopCh  chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its background sweeper.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow records a request for key and reports whether it fits under limit.
// A disabled limiter or a non-positive limit always allows.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	if !rl.config.Enabled || limit <= 0 {
		return true
	}

	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[key]
	if b == nil || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{hits: 1, resetAt: now.Add(time.Minute)}
		return true
	}

	if b.hits >= limit {
		return false
	}
	b.hits++
	return true
}

// sweep drops expired buckets so idle callers do not accumulate forever.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.After(b.resetAt) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the background sweeper.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}
