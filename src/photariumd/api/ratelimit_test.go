package api

import (
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: true})

	key := "ip:127.0.0.1"
	for i := 0; i < 3; i++ {
		if !rl.Allow(key, 3) {
			t.Fatalf("request %d should fit under the limit", i+1)
		}
	}
	if rl.Allow(key, 3) {
		t.Fatal("request over the limit should be denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: true})

	// Exhaust one caller's budget
	rl.Allow("user:alice", 2)
	rl.Allow("user:alice", 2)
	if rl.Allow("user:alice", 2) {
		t.Fatal("alice should be throttled")
	}

	// Other callers keep their own budget
	if !rl.Allow("user:bob", 2) {
		t.Fatal("bob should not be affected by alice's budget")
	}
	if !rl.Allow("ip:10.0.0.1", 2) {
		t.Fatal("anonymous callers should not be affected either")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: true})

	key := "ip:10.0.0.1"
	if !rl.Allow(key, 1) {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow(key, 1) {
		t.Fatal("second request in the same window should be denied")
	}

	// Force the window to expire
	rl.mu.Lock()
	rl.buckets[key].resetAt = time.Now().Add(-time.Second)
	rl.mu.Unlock()

	if !rl.Allow(key, 1) {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestRateLimiterDisabledAllowsEverything(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: false})

	for i := 0; i < 50; i++ {
		if !rl.Allow("ip:1.1.1.1", 1) {
			t.Fatalf("request %d should pass when limiting is disabled", i+1)
		}
	}
}

func TestRateLimiterNonPositiveLimitAllows(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: true})

	if !rl.Allow("ip:1.1.1.1", 0) {
		t.Fatal("zero limit should allow")
	}
	if !rl.Allow("ip:1.1.1.1", -5) {
		t.Fatal("negative limit should allow")
	}
}

func TestRateLimiterSweepDropsExpired(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: true})

	for i := 0; i < 4; i++ {
		rl.Allow(fmt.Sprintf("ip:192.168.0.%d", i), 10)
	}

	rl.mu.Lock()
	for _, b := range rl.buckets {
		b.resetAt = time.Now().Add(-time.Second)
	}
	// Run one sweep pass inline
	now := time.Now()
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
	remaining := len(rl.buckets)
	rl.mu.Unlock()

	if remaining != 0 {
		t.Fatalf("expected all buckets swept, %d remain", remaining)
	}
}
