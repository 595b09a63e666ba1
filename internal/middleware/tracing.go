package middleware

import (
	"net/http"
	"time"

	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/logging"
)

// TracingMiddleware adds a trace ID and the client address to every request
// and writes the access log.
type TracingMiddleware struct {
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewTracingMiddleware creates a new tracing middleware. Requests to
// skipPaths are traced but not logged.
func NewTracingMiddleware(logger *logging.Logger, skipPaths ...string) *TracingMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &TracingMiddleware{
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the tracing middleware handler
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}

		ctx := logging.WithTraceID(r.Context(), traceID)
		ctx = httputil.WithClientIP(ctx, httputil.ClientIP(r))
		w.Header().Set("X-Trace-ID", traceID)

		rw := wrapResponseWriter(w)
		start := time.Now()

		next.ServeHTTP(rw, r.WithContext(ctx))

		if m.skipPaths[r.URL.Path] {
			return
		}
		m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
