// Package principal turns inbound credentials into the authenticated identity
// that resolvers act on.
package principal

import (
	"context"
	"net/http"
	"strings"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/token"
)

// Principal is the authenticated identity of one request or connection.
// It is built once and never modified.
type Principal struct {
	ID string
}

type contextKey struct{}

// WithPrincipal attaches p to ctx. A nil p leaves the request anonymous.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	if p == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, contextKey{}, p)
	return logging.WithUserID(ctx, p.ID)
}

// FromContext returns the principal attached to ctx, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKey{}).(*Principal)
	return p
}

// Require returns the principal or an Unauthenticated error.
func Require(ctx context.Context) (*Principal, error) {
	p := FromContext(ctx)
	if p == nil {
		return nil, errors.Unauthenticated("")
	}
	return p, nil
}

// Verifier is the part of the token codec the builder needs.
type Verifier interface {
	Verify(tokenString string) (token.Claims, error)
}

// Builder derives a principal from HTTP headers or WebSocket connection
// parameters. Verification failures are logged and degrade to an anonymous
// context; they never abort the request.
type Builder struct {
	verifier Verifier
	logger   *logging.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(verifier Verifier, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{verifier: verifier, logger: logger}
}

// FromHeader reads the Authorization header. http.Header.Get canonicalises
// the key, so the lookup is case-insensitive.
func (b *Builder) FromHeader(ctx context.Context, h http.Header) *Principal {
	return b.fromValue(ctx, h.Get("Authorization"), "header")
}

// FromConnectionParams reads the authorization entry of a WebSocket
// connection_init payload.
func (b *Builder) FromConnectionParams(ctx context.Context, params map[string]interface{}) *Principal {
	for _, key := range []string{"authorization", "Authorization"} {
		if v, ok := params[key].(string); ok && v != "" {
			return b.fromValue(ctx, v, "connection_params")
		}
	}
	return nil
}

func (b *Builder) fromValue(ctx context.Context, value, source string) *Principal {
	raw := bearerToken(value)
	if raw == "" {
		return nil
	}

	claims, err := b.verifier.Verify(raw)
	if err != nil {
		reason := "invalid"
		if errors.HasCode(err, errors.CodeExpiredCredential) {
			reason = "expired"
		}
		b.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"source": source,
			"reason": reason,
		}).Warn("Token verification failed, continuing unauthenticated")
		return nil
	}
	return &Principal{ID: claims.ID}
}

// bearerToken strips an optional "Bearer " scheme prefix.
func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "bearer ") {
		value = strings.TrimSpace(value[7:])
	}
	return value
}
