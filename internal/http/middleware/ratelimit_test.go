package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRateLimiterBurstThenRefuse(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst requests must pass")
	}
	if rl.Allow("a") {
		t.Fatal("expected third immediate request refused")
	}
	// Other keys have their own bucket.
	if !rl.Allow("b") {
		t.Fatal("independent key must not be starved")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(1, 1, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
}

func TestKeyBySender(t *testing.T) {
	form := url.Values{}
	form.Set("From", "+972501234567")
	req := httptest.NewRequest("POST", "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if got := KeyBySender(req); got != "+972501234567" {
		t.Fatalf("expected sender key, got %q", got)
	}

	empty := httptest.NewRequest("POST", "/webhooks/twilio/sms", strings.NewReader(""))
	empty.Header.Set("X-Real-Ip", "10.0.0.9")
	if got := KeyBySender(empty); got != "10.0.0.9" {
		t.Fatalf("expected IP fallback, got %q", got)
	}
}
