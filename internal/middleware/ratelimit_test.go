package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limitedRequest(ip, workspace string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memory/search", http.NoBody)
	req.RemoteAddr = ip
	if workspace != "" {
		req.Header.Set(HeaderWorkspaceID, workspace)
		req.Header.Set(HeaderUserID, "u1")
	}
	return req
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	handler := rl.Handler(okHandler())

	for i := range 10 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, limitedRequest("192.168.1.1", ""))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	handler := rl.Handler(okHandler())

	for range 5 {
		handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("192.168.1.1", ""))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("192.168.1.1", ""))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected 0 remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("expected limit header 5, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()

	if _, _, ok := rl.allow("k", now); !ok {
		t.Fatal("expected first request to pass")
	}
	_, wait, ok := rl.allow("k", now)
	if ok {
		t.Fatal("expected second request to be limited")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("expected a wait of at most one second, got %v", wait)
	}
	if _, _, ok := rl.allow("k", now.Add(time.Second)); !ok {
		t.Fatal("expected a token after one second")
	}
}

func TestRateLimiterPerWorkspace(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	handler := MemoryUser(rl.Handler(okHandler()))

	// Same workspace from two addresses shares one bucket.
	handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("10.0.0.1", "ws1"))
	handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("10.0.0.2", "ws1"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("10.0.0.3", "ws1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("ws1: expected 429, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("10.0.0.1", "ws2"))
	if rec.Code != http.StatusOK {
		t.Errorf("ws2: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("10.0.0.1", ""))
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	handler := rl.Handler(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("10.0.0.1", ""))
	handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("10.0.0.2", ""))

	if rl.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", rl.Len())
	}
	rl.cleanup(-time.Second)
	if rl.Len() != 0 {
		t.Errorf("expected idle buckets removed, got %d", rl.Len())
	}
}

func TestRateLimiterCapacity(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.maxBuckets = 1
	handler := rl.Handler(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), limitedRequest("10.0.0.1", ""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("10.0.0.2", ""))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 at bucket capacity, got %d", rec.Code)
	}
}
