package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/token"
)

func newTestBuilder(t *testing.T) (*principal.Builder, *token.Codec) {
	t.Helper()
	codec, err := token.NewCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return principal.NewBuilder(codec, logging.NewDiscard()), codec
}

func TestPrincipalMiddleware_Handler(t *testing.T) {
	builder, codec := newTestBuilder(t)
	valid, err := codec.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		wantID string
	}{
		{"no header", "", ""},
		{"valid token", "Bearer " + valid, "user-123"},
		{"lowercase scheme", "bearer " + valid, "user-123"},
		{"malformed token", "Bearer not-a-token", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			var called bool
			handler := NewPrincipalMiddleware(builder).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotID = GetUserID(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if !called {
				t.Fatal("next handler not called; the middleware must never reject")
			}
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rr.Code)
			}
			if gotID != tt.wantID {
				t.Errorf("user id = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		origins    string
		origin     string
		method     string
		wantAllow  string
		wantStatus int
	}{
		{"allowed origin", "http://localhost:3000", "http://localhost:3000", http.MethodGet, "http://localhost:3000", http.StatusOK},
		{"trailing slash config", "http://localhost:3000/", "http://localhost:3000", http.MethodGet, "http://localhost:3000", http.StatusOK},
		{"foreign origin", "http://localhost:3000", "http://evil.example", http.MethodGet, "", http.StatusOK},
		{"wildcard", "*", "http://any.example", http.MethodGet, "http://any.example", http.StatusOK},
		{"preflight", "http://localhost:3000", "http://localhost:3000", http.MethodOptions, "http://localhost:3000", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/graphql", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			NewCORSMiddleware(tt.origins).Handler(next).ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("%s not set", h)
		}
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logging.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}
