// Package auth serves accounts, sessions and the follower graph.
package auth

import (
	"context"
	_ "embed"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/mailer"
	"github.com/threadsclone/backend/internal/middleware"
	"github.com/threadsclone/backend/internal/notify"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/internal/token"
	"github.com/threadsclone/backend/services/common/service"
)

const (
	ServiceName = "auth"
	Version     = "1.0.0"
	DefaultPort = 4001
)

//go:embed schema.graphql
var Schema string

// Source is the auth schema fragment.
func Source() graph.Source {
	return graph.Source{Name: "auth.graphql", SDL: Schema}
}

// QueryResolver lists the auth queries.
type QueryResolver interface {
	Me(ctx context.Context) (*graph.UserResolver, error)
	User(ctx context.Context, args struct{ ID graphql.ID }) (*graph.UserResolver, error)
	UserByUsername(ctx context.Context, args struct{ Username string }) (*graph.UserResolver, error)
	SearchUsers(ctx context.Context, args SearchArgs) ([]*graph.UserResolver, error)
}

// MutationResolver lists the auth mutations.
type MutationResolver interface {
	Register(ctx context.Context, args struct{ Input RegisterInput }) (*AuthPayloadResolver, error)
	Login(ctx context.Context, args struct{ Input LoginInput }) (*AuthPayloadResolver, error)
	UpdateProfile(ctx context.Context, args struct{ Input UpdateProfileInput }) (*graph.UserResolver, error)
	FollowUser(ctx context.Context, args UserArgs) (*graph.UserResolver, error)
	UnfollowUser(ctx context.Context, args UserArgs) (*graph.UserResolver, error)
	VerifyEmail(ctx context.Context, args struct{ Token string }) (bool, error)
	ForgotPassword(ctx context.Context, args struct{ Email string }) (bool, error)
	ResetPassword(ctx context.Context, args struct{ Token, Password string }) (bool, error)
	DeleteAccount(ctx context.Context) (bool, error)
}

// SubscriptionResolver lists the auth subscriptions.
type SubscriptionResolver interface {
	UserUpdated(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error)
	UserFollowed(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error)
	UserUnfollowed(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error)
}

var (
	_ QueryResolver        = (*Resolver)(nil)
	_ MutationResolver     = (*Resolver)(nil)
	_ SubscriptionResolver = (*Resolver)(nil)
)

// Resolver implements the auth root fields.
type Resolver struct {
	models    *graph.Models
	stores    storage.Stores
	codec     *token.Codec
	publisher pubsub.Publisher
	registry  pubsub.Subscriber
	notifier  *notify.Notifier
	mailer    mailer.Sender
	logger    *logging.Logger

	authLimit  *middleware.RateLimiter
	resetLimit *middleware.RateLimiter

	frontendURL string
	now         func() time.Time
}

// NewResolver builds the auth resolver over deps.
func NewResolver(deps *service.Deps) *Resolver {
	authTier, resetTier := middleware.AuthTier, middleware.ResetTier
	frontendURL := ""
	if cfg := deps.Config; cfg != nil {
		if cfg.AuthRateLimitMax > 0 {
			authTier.Limit = cfg.AuthRateLimitMax
		}
		if cfg.ResetRateLimitMax > 0 {
			resetTier.Limit = cfg.ResetRateLimitMax
		}
		frontendURL = cfg.FrontendURL
	}
	return &Resolver{
		models:      deps.Models,
		stores:      deps.Stores,
		codec:       deps.Codec,
		publisher:   deps.Registry,
		registry:    deps.Registry,
		notifier:    deps.Notifier,
		mailer:      deps.Mailer,
		logger:      deps.Logger,
		authLimit:   middleware.NewRateLimiter(authTier, deps.Logger, deps.Metrics),
		resetLimit:  middleware.NewRateLimiter(resetTier, deps.Logger, deps.Metrics),
		frontendURL: frontendURL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Limiters returns the operation-level rate limiters so their caches can be
// run with the service.
func (r *Resolver) Limiters() []*middleware.RateLimiter {
	return []*middleware.RateLimiter{r.authLimit, r.resetLimit}
}

// UserArgs selects a user by id.
type UserArgs struct {
	UserID graphql.ID
}

// SearchArgs are the searchUsers arguments.
type SearchArgs struct {
	Query string
	graph.PageArgs
}

// RegisterInput is the register payload.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName string
	Bio      *string
	Avatar   *string
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput is the updateProfile payload.
type UpdateProfileInput struct {
	Email    *string
	Username *string
	FullName *string
	Bio      *string
	Avatar   *string
}

// AuthPayloadResolver resolves AuthPayload.
type AuthPayloadResolver struct {
	token string
	user  *graph.UserResolver
}

func (p *AuthPayloadResolver) Token() string { return p.token }

func (p *AuthPayloadResolver) User() *graph.UserResolver { return p.user }
