package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baliwag-egov/civreg/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

func TestRequestID_Generated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if seen == "" {
		t.Fatal("expected a generated request ID in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req-abc-123" {
		t.Errorf("expected client-supplied request ID, got %q", seen)
	}
}

// fakeValidator satisfies TokenValidator without signing real tokens.
type fakeValidator struct {
	claims *auth.Claims
	err    error
}

func (f *fakeValidator) ValidateToken(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func accessClaims(userID string, role auth.Role) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Role:             role,
		Type:             auth.TokenTypeAccess,
	}
}

func TestAuth_ValidToken(t *testing.T) {
	validator := &fakeValidator{claims: accessClaims("user-7", auth.RoleEmployee)}

	var id Identity
	h := Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = GetIdentity(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/permits/burial_permit", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if id.UserID != "user-7" || id.Role != auth.RoleEmployee {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestAuth_NoTokenPassesThrough(t *testing.T) {
	validator := &fakeValidator{err: errors.New("should not be called")}

	var called bool
	h := Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if GetIdentity(r.Context()).UserID != "" {
			t.Error("expected anonymous identity")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !called {
		t.Fatal("handler should run for tokenless requests")
	}
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		validator TokenValidator
	}{
		{
			name:      "malformed header",
			header:    "Basic dXNlcjpwYXNz",
			validator: &fakeValidator{},
		},
		{
			name:      "empty bearer token",
			header:    "Bearer ",
			validator: &fakeValidator{},
		},
		{
			name:      "invalid token",
			header:    "Bearer bad",
			validator: &fakeValidator{err: auth.ErrInvalidRole},
		},
		{
			name:      "refresh token on API endpoint",
			header:    "Bearer refresh",
			validator: &fakeValidator{claims: &auth.Claims{Type: auth.TokenTypeRefresh}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/permits/burial_permit", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMemoryRateLimitStore(t *testing.T) {
	store := NewMemoryRateLimitStore()
	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}

	for i := 0; i < 3; i++ {
		if allowed, _ := store.Allow(context.Background(), "user:u1", config); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(context.Background(), "user:u1", config)
	if allowed {
		t.Fatal("fourth request should be limited")
	}
	if retryAfter < 1 {
		t.Errorf("expected positive retry-after, got %d", retryAfter)
	}

	// A different client has its own window.
	if allowed, _ := store.Allow(context.Background(), "user:u2", config); !allowed {
		t.Error("separate key should not share the window")
	}

	// The window resets after its duration elapses.
	now = now.Add(time.Minute)
	if allowed, _ := store.Allow(context.Background(), "user:u1", config); !allowed {
		t.Error("expected a fresh window after expiry")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	store := NewMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	h := RateLimit(store, config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/permits/burial_permit", nil)
	req.RemoteAddr = "203.0.113.9:51234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), "rate_limited") {
		t.Errorf("expected rate_limited error code, got %s", rec.Body.String())
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:40000"
	if got := clientKey(req); got != "ip:198.51.100.4" {
		t.Errorf("anonymous key = %q", got)
	}

	ctx := SetIdentity(req.Context(), Identity{UserID: "citizen-1", Role: auth.RoleUser})
	if got := clientKey(req.WithContext(ctx)); got != "user:citizen-1" {
		t.Errorf("authenticated key = %q", got)
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/internal/payments/callback", "/internal/payments/callback"},
		{"/permits/mine", "/permits/mine"},
		{"/permits/burial_permit", "/permits/{variant}"},
		{"/permits/burial_permit/abc-123", "/permits/{variant}/{id}"},
		{"/permits/cremation_permit/abc-123/approve", "/permits/{variant}/{id}/approve"},
		{"/permits/burial_permit/abc-123/payment/confirm", "/permits/{variant}/{id}/payment/confirm"},
		{"/documents/permits/abc/death_certificate.pdf", "/documents/{key}"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		if got := normalizeRoute(tt.path); got != tt.want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
