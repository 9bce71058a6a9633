package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, limit int, d time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l := New(ctx, limit, d)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_WindowResets(t *testing.T) {
	l, now := newTestLimiter(t, 2, time.Minute)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Error("third request should be limited")
	}
	if !l.Allow("b") {
		t.Error("keys are independent")
	}
	if got := l.Remaining("a"); got != 0 {
		t.Errorf("Remaining(a): got %d", got)
	}

	*now = now.Add(time.Minute + time.Second)
	if !l.Allow("a") {
		t.Error("request after the window should pass")
	}
	if got := l.Remaining("a"); got != 1 {
		t.Errorf("Remaining(a) in new window: got %d", got)
	}
}

func TestWrites_OnlyCountsMutations(t *testing.T) {
	l, now := newTestLimiter(t, 1, time.Minute)
	h := Writes(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/assignments", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d: got %d", i, rec.Code)
		}
	}
	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST: got %d", rec.Code)
	}
	rec := do(http.MethodDelete)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After: got %q", rec.Header().Get("Retry-After"))
	}

	// Later in the same window the wait shrinks to what is left of it.
	*now = now.Add(45*time.Second + 500*time.Millisecond)
	rec = do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("write later in the window: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "15" {
		t.Errorf("Retry-After later in the window: got %q, want 15", rec.Header().Get("Retry-After"))
	}
}

func TestReset(t *testing.T) {
	l, now := newTestLimiter(t, 1, time.Minute)
	start := *now

	if got := l.Reset("a"); !got.Equal(start) {
		t.Errorf("Reset without a window: got %v, want now", got)
	}
	l.Allow("a")
	*now = now.Add(20 * time.Second)
	if got := l.Reset("a"); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("Reset: got %v, want %v", got, start.Add(time.Minute))
	}
	if got := l.retryAfter("a"); got != 40 {
		t.Errorf("retryAfter: got %d, want 40", got)
	}

	*now = now.Add(time.Minute)
	if got := l.retryAfter("a"); got != 1 {
		t.Errorf("retryAfter after the window: got %d, want 1", got)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if got := ClientIP(req); got != "192.0.2.7" {
		t.Errorf("got %q", got)
	}
	req.RemoteAddr = "192.0.2.8"
	if got := ClientIP(req); got != "192.0.2.8" {
		t.Errorf("no port: got %q", got)
	}
}
