package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/security"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Hour,
		BurstSize:         1,
	})

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "key")
		if err != nil || !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "key"); allowed {
		t.Error("request over burst should be rejected")
	}
	if allowed, _ := limiter.Allow(ctx, "other"); !allowed {
		t.Error("keys should be limited independently")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Hour, BurstSize: 2})

	if n, _ := limiter.Remaining(ctx, "key"); n != 7 {
		t.Errorf("expected 7 remaining before any request, got %d", n)
	}
	limiter.Allow(ctx, "key")
	if n, _ := limiter.Remaining(ctx, "key"); n != 6 {
		t.Errorf("expected 6 remaining, got %d", n)
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 100 * time.Millisecond})

	for i := 0; i < 10; i++ {
		limiter.Allow(ctx, "key")
	}
	if allowed, _ := limiter.Allow(ctx, "key"); allowed {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if allowed, _ := limiter.Allow(ctx, "key"); !allowed {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Millisecond})
	limiter.Allow(ctx, "key")

	time.Sleep(5 * time.Millisecond)
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	if len(limiter.buckets) != 0 {
		t.Errorf("expected idle bucket to be removed, %d left", len(limiter.buckets))
	}
}

func TestRateLimiter_Concurrency(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(ctx, "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed requests, got %d", allowed)
	}
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	if limiter.Config().RequestsPerWindow != DefaultRateLimitConfig().RequestsPerWindow {
		t.Error("expected default config")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "1.1.1.1:1", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.2"}, "1.1.1.1:1", "10.0.0.2"},
		{"remote addr", nil, "1.1.1.1:1", "1.1.1.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestRateLimitMiddleware_Handler(t *testing.T) {
	user := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Hour})
	anonymous := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	limits := NewRateLimitMiddleware(user, anonymous, nil)

	handler := limits.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(u *security.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		if u != nil {
			req = req.WithContext(security.WithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first anonymous request: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("unexpected limit header %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = send(nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("rate limited response should carry Retry-After and a zero remaining count")
	}
	if !strings.Contains(rec.Body.String(), "Rate limit exceeded.") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = send(&security.User{Username: "dunglas"})
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated request uses its own limiter, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("expected 4 remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func setupDistributed(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	mr, client := setupDistributed(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")
	now := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "ip:1")
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i+1)
	}
	allowed, err := limiter.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.False(t, allowed, "third request in the window")

	n, err := limiter.Remaining(ctx, "ip:1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	key := "gantry:ratelimit:ip:1:" + strconv.FormatInt(now.Truncate(time.Minute).Unix(), 10)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	t.Run("other callers are independent", func(t *testing.T) {
		n, err := limiter.Remaining(ctx, "ip:2")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("next window starts fresh", func(t *testing.T) {
		now = now.Add(time.Minute)
		allowed, err := limiter.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, allowed)

		n, err := limiter.Remaining(ctx, "ip:1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("old windows expire", func(t *testing.T) {
		mr.FastForward(time.Minute)
		assert.False(t, mr.Exists(key))
	})
}

func TestDistributedRateLimiter_Burst(t *testing.T) {
	ctx := context.Background()
	_, client := setupDistributed(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour, BurstSize: 2}, "gantry:test")

	var allowed int
	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, "user:dunglas")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestRateLimitMiddleware_RedisDown(t *testing.T) {
	mr, client := setupDistributed(t)
	limiter := NewDistributedRateLimiter(client, nil, "")
	limits := NewRateLimitMiddleware(limiter, limiter, nil)
	mr.Close()

	called := false
	handler := limits.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("requests should pass when redis is down and fail open is enabled")
	}

	limits.SetFailOpen(false)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when failing closed, got %d", rec.Code)
	}
}
