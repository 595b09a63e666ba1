package auth

import (
	"context"

	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
)

// UserUpdated streams profile changes of a user.
func (r *Resolver) UserUpdated(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error) {
	return r.watch(ctx, string(args.UserID), pubsub.UserUpdated)
}

// UserFollowed streams the user each time someone starts following them.
func (r *Resolver) UserFollowed(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error) {
	return r.watch(ctx, string(args.UserID), pubsub.UserFollowed)
}

// UserUnfollowed streams the user each time someone stops following them.
func (r *Resolver) UserUnfollowed(ctx context.Context, args UserArgs) (<-chan *graph.UserResolver, error) {
	return r.watch(ctx, string(args.UserID), pubsub.UserUnfollowed)
}

// watch subscribes to a per-user topic. Only the user and their followers
// may listen.
func (r *Resolver) watch(ctx context.Context, userID string, topic func(string) string) (<-chan *graph.UserResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	if p.ID != userID {
		if _, err := r.stores.Users.GetUser(ctx, userID); err != nil {
			return nil, graph.StoreError(err, "User")
		}
		following, err := r.stores.Follows.IsFollowing(ctx, p.ID, userID)
		if err != nil {
			return nil, graph.StoreError(err, "Follow")
		}
		if !following {
			return nil, errors.Forbidden("Not authorized to subscribe to this user")
		}
	}

	sub, err := r.registry.Subscribe(ctx, topic(userID))
	if err != nil {
		return nil, errors.Internal("subscribe", err)
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, u user.User) (*graph.UserResolver, bool) {
		return r.models.User(u), true
	})), nil
}
