package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
)

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(Tier{Name: "test", Limit: 2, Window: time.Hour}, logging.NewDiscard(), nil)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do("10.0.0.1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rr.Code)
		}
	}
	rr := do("10.0.0.1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	if rr := do("10.0.0.2"); rr.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rr.Code)
	}
}

func TestRateLimiter_Check(t *testing.T) {
	m := metrics.New("test")
	rl := NewRateLimiter(Tier{Name: "auth", Limit: 1, Window: time.Hour}, logging.NewDiscard(), m)

	if err := rl.Check(context.Background(), "1.2.3.4"); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}
	err := rl.Check(context.Background(), "1.2.3.4")
	if !errors.HasCode(err, errors.CodeRateLimited) {
		t.Fatalf("second Check() error = %v, want RATE_LIMITED", err)
	}
	got, err := testutil.GatherAndCount(m.Registry(), "threads_ratelimit_rejected_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if got != 1 {
		t.Errorf("rejection series = %d, want 1", got)
	}
}
