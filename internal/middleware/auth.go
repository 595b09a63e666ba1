// Package middleware provides HTTP middleware for the services and gateway
package middleware

import (
	"net/http"

	"github.com/threadsclone/backend/internal/principal"
)

// PrincipalMiddleware attaches the caller's principal to every request.
// It never rejects: resolvers decide what an anonymous caller may do.
type PrincipalMiddleware struct {
	builder *principal.Builder
}

// NewPrincipalMiddleware creates the middleware around a context builder.
func NewPrincipalMiddleware(builder *principal.Builder) *PrincipalMiddleware {
	return &PrincipalMiddleware{builder: builder}
}

// Handler returns the middleware handler
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.builder.FromHeader(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(principal.WithPrincipal(r.Context(), p)))
	})
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) string {
	if p := principal.FromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
