package posts

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
)

func (r *Resolver) PostAdded(ctx context.Context) (<-chan *graph.PostResolver, error) {
	return r.watchPosts(ctx, pubsub.PostAdded)
}

func (r *Resolver) PostUpdated(ctx context.Context) (<-chan *graph.PostResolver, error) {
	return r.watchPosts(ctx, pubsub.PostUpdated)
}

// PostDeleted streams the ids of deleted posts the caller could see.
func (r *Resolver) PostDeleted(ctx context.Context) (<-chan graphql.ID, error) {
	p, sub, err := r.subscribe(ctx, pubsub.PostDeleted)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, deleted post.Post) (graphql.ID, bool) {
		return graphql.ID(deleted.ID), post.VisibleTo(deleted, p.ID)
	})), nil
}

func (r *Resolver) CommentAdded(ctx context.Context, args CommentTopicArgs) (<-chan *graph.CommentResolver, error) {
	return r.watchComments(ctx, pubsub.CommentAdded, args)
}

func (r *Resolver) CommentUpdated(ctx context.Context, args CommentTopicArgs) (<-chan *graph.CommentResolver, error) {
	return r.watchComments(ctx, pubsub.CommentUpdated, args)
}

func (r *Resolver) CommentDeleted(ctx context.Context, args CommentTopicArgs) (<-chan graphql.ID, error) {
	p, sub, err := r.subscribe(ctx, pubsub.CommentDeleted)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(ctx context.Context, c post.Comment) (graphql.ID, bool) {
		return graphql.ID(c.ID), r.deliverComment(ctx, p.ID, args, c)
	})), nil
}

// watchPosts streams post events. Private posts only reach their author.
func (r *Resolver) watchPosts(ctx context.Context, topic string) (<-chan *graph.PostResolver, error) {
	p, sub, err := r.subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, ev post.Post) (*graph.PostResolver, bool) {
		if !post.VisibleTo(ev, p.ID) {
			return nil, false
		}
		return r.models.Post(ev), true
	})), nil
}

func (r *Resolver) watchComments(ctx context.Context, topic string, args CommentTopicArgs) (<-chan *graph.CommentResolver, error) {
	p, sub, err := r.subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(ctx context.Context, c post.Comment) (*graph.CommentResolver, bool) {
		if !r.deliverComment(ctx, p.ID, args, c) {
			return nil, false
		}
		return r.models.Comment(c), true
	})), nil
}

// deliverComment applies the optional post filter and the visibility of the
// comment's post.
func (r *Resolver) deliverComment(ctx context.Context, viewerID string, args CommentTopicArgs, c post.Comment) bool {
	if args.PostID != nil && string(*args.PostID) != c.PostID {
		return false
	}
	parent, err := r.stores.Posts.GetPost(ctx, c.PostID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("post_id", c.PostID).Debug("Dropping comment event")
		return false
	}
	return post.VisibleTo(parent, viewerID)
}

func (r *Resolver) subscribe(ctx context.Context, topic string) (*principal.Principal, *pubsub.Subscription, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, err := r.registry.Subscribe(ctx, topic)
	if err != nil {
		return nil, nil, errors.Internal("subscribe", err)
	}
	return p, sub, nil
}
