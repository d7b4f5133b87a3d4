package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type memCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	fail   error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counts: make(map[string]int64)}
}

func (s *memCounterStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	s.counts[key]++
	return s.counts[key], nil
}

func newTestLimiter(store *memCounterStore, general, login int64) *RateLimiter {
	limiter := NewRateLimiter(store, RateLimitConfig{GeneralLimit: general, LoginLimit: login}, slog.Default())
	limiter.nowFn = func() time.Time { return time.Unix(1_700_000_030, 0) }
	return limiter
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterRejectsAboveLimit(t *testing.T) {
	t.Parallel()

	store := newMemCounterStore()
	limiter := newTestLimiter(store, 100, 10)
	handler := limiter.Middleware(okHandler())

	for i := 1; i <= 100; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/vault/items", nil)
		req.RemoteAddr = "10.0.0.1:4567"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
		wantRemaining := strconv.Itoa(100 - i)
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d: remaining = %s, want %s", i, got, wantRemaining)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vault/items", nil)
	req.RemoteAddr = "10.0.0.1:4567"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("101st request should be rejected, got %d", rec.Code)
	}
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("missing Retry-After: %v", err)
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("Retry-After should be within the window, got %d", retryAfter)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("remaining after breach = %s, want 0", got)
	}
}

func TestRateLimiterLoginClassHasLowerLimit(t *testing.T) {
	t.Parallel()

	store := newMemCounterStore()
	limiter := newTestLimiter(store, 100, 3)
	handler := limiter.Middleware(okHandler())

	send := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.2:4567"
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := send("/api/auth/login"); code != http.StatusOK {
			t.Fatalf("login %d should pass, got %d", i+1, code)
		}
	}
	if code := send("/api/auth/login"); code != http.StatusTooManyRequests {
		t.Fatalf("4th login should be rejected, got %d", code)
	}

	// The general class counts separately for the same client.
	if code := send("/api/vault/items"); code != http.StatusOK {
		t.Fatalf("general request should still pass, got %d", code)
	}
	if code := send("/api/auth/2fa/verify-login"); code != http.StatusTooManyRequests {
		t.Fatalf("step-up login shares the login class, got %d", code)
	}
}

func TestRateLimiterKeysOnForwardedClient(t *testing.T) {
	t.Parallel()

	store := newMemCounterStore()
	limiter := newTestLimiter(store, 2, 2)
	handler := limiter.Middleware(okHandler())

	send := func(xff string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/vault/items", nil)
		req.RemoteAddr = "192.168.0.1:1111"
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("1.1.1.1, 2.2.2.2") != http.StatusOK || send("1.1.1.1") != http.StatusOK {
		t.Fatalf("first two requests for client 1.1.1.1 should pass")
	}
	if send("1.1.1.1") != http.StatusTooManyRequests {
		t.Fatalf("third request for client 1.1.1.1 should be rejected")
	}
	if send("3.3.3.3") != http.StatusOK {
		t.Fatalf("a different forwarded client has its own window")
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	t.Parallel()

	store := newMemCounterStore()
	store.fail = errors.New("connection refused")
	limiter := newTestLimiter(store, 1, 1)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/vault/items", nil)
		req.RemoteAddr = "10.0.0.3:4567"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should fail open, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterEmitsResetHeader(t *testing.T) {
	t.Parallel()

	store := newMemCounterStore()
	limiter := newTestLimiter(store, 10, 10)
	handler := limiter.Middleware(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vault/items", nil)
	req.RemoteAddr = "10.0.0.4:4567"
	handler.ServeHTTP(rec, req)

	now := limiter.nowFn().Unix()
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Fatalf("missing X-RateLimit-Reset: %v", err)
	}
	if reset <= now || reset > now+60 {
		t.Fatalf("reset %d should fall within the next window after %d", reset, now)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Fatalf("limit header = %s, want 10", got)
	}
	if len(store.counts) != 1 {
		t.Fatalf("expected a single window key, got %v", store.counts)
	}
	for key := range store.counts {
		want := fmt.Sprintf("general:10.0.0.4:%d", now/60)
		if key != want {
			t.Fatalf("window key = %s, want %s", key, want)
		}
	}
}
