package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

var testClock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestLimiter(config *Config) *Limiter {
	l := NewLimiter(config)
	l.now = func() time.Time { return testClock }
	return l
}

func TestBucket_Allow(t *testing.T) {
	b := newBucket(10, 1.0) // 10 tokens, 1 token per second

	for i := 0; i < 10; i++ {
		if !b.allow(testClock) {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	if b.allow(testClock) {
		t.Error("Expected 11th request to be denied")
	}

	// One second later exactly one token has refilled
	later := testClock.Add(time.Second)
	if !b.allow(later) {
		t.Error("Expected request to be allowed after refill")
	}
	if b.allow(later) {
		t.Error("Expected request to be denied after consuming refilled token")
	}
}

func TestBucket_Status(t *testing.T) {
	b := newBucket(10, 1.0)
	for i := 0; i < 5; i++ {
		b.allow(testClock)
	}

	remaining, resetTime := b.status(testClock)
	if remaining != 5 {
		t.Errorf("Expected 5 remaining tokens, got %d", remaining)
	}
	if want := testClock.Add(5 * time.Second); !resetTime.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, resetTime)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", info.Remaining)
	}
	// 10 per minute refills one token every 6s
	if d := info.RetryAfter - 6*time.Second; d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("Expected retry after ~6s, got %v", info.RetryAfter)
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
		if info.Limit != 0 {
			t.Errorf("Expected limit 0 for whitelisted, got %d", info.Limit)
		}
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"192.168.1.1": true},
	})
	defer limiter.Stop()

	if allowed, _ := limiter.Allow("192.168.1.1", "/test", "GET"); allowed {
		t.Error("Expected blacklisted request to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := newTestLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
		if info.Limit != 0 {
			t.Errorf("Expected limit 0 when disabled, got %d", info.Limit)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("Expected no buckets when disabled, got %d", limiter.Len())
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/autonomous/runs", Method: "POST", Limit: 5, Window: time.Hour, Burst: 5},
		},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/autonomous/runs", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 5 {
			t.Errorf("Expected limit 5, got %d", info.Limit)
		}
	}

	if allowed, _ := limiter.Allow("127.0.0.1", "/autonomous/runs", "POST"); allowed {
		t.Error("Expected 6th request to be denied")
	}

	allowed, info := limiter.Allow("127.0.0.1", "/autonomous/active-run", "GET")
	if !allowed {
		t.Error("Expected different endpoint to be allowed")
	}
	if info.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", info.Limit)
	}
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET"); !allowed {
			t.Fatalf("Expected health check %d to be allowed", i+1)
		}
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/test", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}

	// Half the clients come back two hours later
	limiter.now = func() time.Time { return testClock.Add(2 * time.Hour) }
	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}

	limiter.cleanupBuckets(testClock.Add(time.Hour))
	if limiter.Len() != 5 {
		t.Errorf("Expected 5 buckets after cleanup, got %d", limiter.Len())
	}
}

func TestLimiter_Burst(t *testing.T) {
	limiter := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/burst", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/burst", "POST"); !allowed {
			t.Errorf("Expected burst request %d to be allowed", i+1)
		}
	}
	if allowed, _ := limiter.Allow("127.0.0.1", "/burst", "POST"); allowed {
		t.Error("Expected request after burst to be denied")
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()
	limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	if !allowed {
		t.Error("Expected request to be allowed with default config")
	}
	if info.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", info.Limit)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantLimit    int
		wantNil      bool
	}{
		{"/autonomous/runs", "POST", 10, false},
		{"/autonomous/runs/abc/stop", "POST", 60, false},
		{"/autonomous/runs/abc", "GET", 0, true},
		{"/health", "GET", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a match")
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got.Limit)
			}
		})
	}
}

func TestMatchEndpoint_LongestPrefix(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/autonomous/", Method: "POST", Limit: 100},
		{Path: "/autonomous/runs/", Method: "POST", Limit: 60},
	}

	got := MatchEndpoint("/autonomous/runs/abc/stop", "POST", configs)
	if got == nil || got.Limit != 60 {
		t.Fatalf("Expected the /autonomous/runs/ rule, got %+v", got)
	}
	if got := MatchEndpoint("/autonomous/runs/abc/stop", "GET", configs); got != nil {
		t.Errorf("Expected method mismatch to yield nil, got %+v", got)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "50")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_CLEANUP_INTERVAL", "not-a-duration")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2,,")
	t.Setenv("RATE_LIMIT_BLACKLIST", "")

	cfg := LoadConfig()
	if !cfg.Enabled {
		t.Fatal("Expected rate limiting to be enabled")
	}
	if cfg.DefaultLimit != 50 {
		t.Errorf("Expected default limit 50, got %d", cfg.DefaultLimit)
	}
	if cfg.DefaultWindow != 30*time.Second {
		t.Errorf("Expected window 30s, got %v", cfg.DefaultWindow)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("Expected malformed interval to fall back to 5m, got %v", cfg.CleanupInterval)
	}
	if len(cfg.Whitelist) != 2 || !cfg.Whitelist["10.0.0.2"] {
		t.Errorf("Unexpected whitelist %v", cfg.Whitelist)
	}
	if len(cfg.Blacklist) != 0 {
		t.Errorf("Expected empty blacklist, got %v", cfg.Blacklist)
	}
	if len(cfg.EndpointConfigs) == 0 {
		t.Error("Expected default endpoint rules")
	}
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	if cfg := LoadConfig(); cfg.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}
}
