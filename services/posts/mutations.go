package posts

import (
	"context"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
)

func (r *Resolver) CreatePost(ctx context.Context, args struct{ Input CreatePostInput }) (*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	in := args.Input.toDomain()
	if err := post.ValidateInput(in); err != nil {
		return nil, err
	}
	if in.ParentPostID != "" {
		if _, err := r.livePost(ctx, p.ID, in.ParentPostID); err != nil {
			return nil, err
		}
	}

	created, err := r.stores.Posts.CreatePost(ctx, post.New(p.ID, in, r.now()))
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}

	r.publish(ctx, pubsub.PostAdded, created)
	r.notifier.NotifyMany(ctx, created.Mentions, notification.Notification{
		Type:     notification.Mention,
		SenderID: p.ID,
		PostID:   created.ID,
	})
	r.logger.WithContext(ctx).WithField("post_id", created.ID).Debug("Post created")
	return r.models.Post(created), nil
}

func (r *Resolver) UpdatePost(ctx context.Context, args UpdatePostArgs) (*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.ownPost(ctx, p.ID, string(args.ID), "update")
	if err != nil {
		return nil, err
	}
	edit := args.Input.toDomain()
	if err := post.ValidateEdit(edit); err != nil {
		return nil, err
	}

	updated, intent := post.ApplyEdit(current, edit, r.now())
	if intent == domain.NoChange {
		return r.models.Post(current), nil
	}
	if updated, err = r.stores.Posts.UpdatePost(ctx, updated); err != nil {
		return nil, graph.StoreError(err, "Post")
	}

	r.publish(ctx, pubsub.PostUpdated, updated)
	r.notifier.NotifyMany(ctx, added(current.Mentions, updated.Mentions), notification.Notification{
		Type:     notification.Mention,
		SenderID: p.ID,
		PostID:   updated.ID,
	})
	return r.models.Post(updated), nil
}

func (r *Resolver) DeletePost(ctx context.Context, args IDArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	current, err := r.ownPost(ctx, p.ID, string(args.ID), "delete")
	if err != nil {
		return false, err
	}

	deleted, _ := post.MarkDeleted(current, r.now())
	if deleted, err = r.stores.Posts.UpdatePost(ctx, deleted); err != nil {
		return false, graph.StoreError(err, "Post")
	}
	r.publish(ctx, pubsub.PostDeleted, deleted)
	return true, nil
}

// TogglePostLike likes the post, or removes the caller's like when present.
func (r *Resolver) TogglePostLike(ctx context.Context, args IDArgs) (*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	target, err := r.livePost(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}

	unliked, err := r.stores.Posts.UnlikePost(ctx, target.ID, p.ID)
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}
	if !unliked {
		liked, err := r.stores.Posts.LikePost(ctx, target.ID, p.ID)
		if err != nil {
			return nil, graph.StoreError(err, "Post")
		}
		if liked {
			r.notifier.Notify(ctx, notification.Notification{
				Type:        notification.Like,
				RecipientID: target.AuthorID,
				SenderID:    p.ID,
				PostID:      target.ID,
			})
		}
	}

	r.publish(ctx, pubsub.PostUpdated, target)
	return r.models.Post(target), nil
}

// SharePost records a share once per user.
func (r *Resolver) SharePost(ctx context.Context, args IDArgs) (*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	target, err := r.livePost(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}

	shared, err := r.stores.Posts.SharePost(ctx, target.ID, p.ID, r.now())
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}
	if shared {
		r.notifier.Notify(ctx, notification.Notification{
			Type:        notification.Share,
			RecipientID: target.AuthorID,
			SenderID:    p.ID,
			PostID:      target.ID,
		})
		r.publish(ctx, pubsub.PostUpdated, target)
	}
	return r.models.Post(target), nil
}

func (r *Resolver) CreateComment(ctx context.Context, args struct{ Input CreateCommentInput }) (*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	in := args.Input.toDomain()
	if err := post.ValidateCommentInput(in); err != nil {
		return nil, err
	}
	target, err := r.livePost(ctx, p.ID, in.PostID)
	if err != nil {
		return nil, err
	}

	var parent post.Comment
	if in.ParentCommentID != "" {
		parent, err = r.visibleComment(ctx, p.ID, in.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != target.ID {
			return nil, errors.Validation("Parent comment belongs to another post").WithDetails("field", "parentCommentId")
		}
		if parent.IsDeleted {
			return nil, errors.NotFound("Comment")
		}
	}

	created, err := r.stores.Comments.CreateComment(ctx, post.NewComment(p.ID, in, r.now()))
	if err != nil {
		return nil, graph.StoreError(err, "Comment")
	}

	r.publish(ctx, pubsub.CommentAdded, created)

	base := notification.Notification{
		Type:      notification.Comment,
		SenderID:  p.ID,
		PostID:    target.ID,
		CommentID: created.ID,
	}
	recipients := []string{target.AuthorID}
	if parent.AuthorID != "" && parent.AuthorID != target.AuthorID {
		recipients = append(recipients, parent.AuthorID)
	}
	r.notifier.NotifyMany(ctx, recipients, base)
	base.Type = notification.Mention
	r.notifier.NotifyMany(ctx, created.Mentions, base)

	return r.models.Comment(created), nil
}

func (r *Resolver) UpdateComment(ctx context.Context, args UpdateCommentArgs) (*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.ownComment(ctx, p.ID, string(args.ID), "update")
	if err != nil {
		return nil, err
	}
	edit := args.Input.toDomain()
	if err := post.ValidateContent(edit.Content, post.MaxCommentContentLength); err != nil {
		return nil, err
	}

	updated, intent := post.ApplyCommentEdit(current, edit, r.now())
	if intent == domain.NoChange {
		return r.models.Comment(current), nil
	}
	if updated, err = r.stores.Comments.UpdateComment(ctx, updated); err != nil {
		return nil, graph.StoreError(err, "Comment")
	}

	r.publish(ctx, pubsub.CommentUpdated, updated)
	r.notifier.NotifyMany(ctx, added(current.Mentions, updated.Mentions), notification.Notification{
		Type:      notification.Mention,
		SenderID:  p.ID,
		PostID:    updated.PostID,
		CommentID: updated.ID,
	})
	return r.models.Comment(updated), nil
}

func (r *Resolver) DeleteComment(ctx context.Context, args IDArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	current, err := r.ownComment(ctx, p.ID, string(args.ID), "delete")
	if err != nil {
		return false, err
	}

	deleted, _ := post.MarkCommentDeleted(current, r.now())
	if deleted, err = r.stores.Comments.UpdateComment(ctx, deleted); err != nil {
		return false, graph.StoreError(err, "Comment")
	}
	r.publish(ctx, pubsub.CommentDeleted, deleted)
	return true, nil
}

// ToggleCommentLike likes the comment, or removes the caller's like.
func (r *Resolver) ToggleCommentLike(ctx context.Context, args IDArgs) (*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	target, err := r.visibleComment(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}
	if target.IsDeleted {
		return nil, errors.NotFound("Comment")
	}

	unliked, err := r.stores.Comments.UnlikeComment(ctx, target.ID, p.ID)
	if err != nil {
		return nil, graph.StoreError(err, "Comment")
	}
	if !unliked {
		liked, err := r.stores.Comments.LikeComment(ctx, target.ID, p.ID)
		if err != nil {
			return nil, graph.StoreError(err, "Comment")
		}
		if liked {
			r.notifier.Notify(ctx, notification.Notification{
				Type:        notification.Like,
				RecipientID: target.AuthorID,
				SenderID:    p.ID,
				PostID:      target.PostID,
				CommentID:   target.ID,
			})
		}
	}

	r.publish(ctx, pubsub.CommentUpdated, target)
	return r.models.Comment(target), nil
}

// ownPost loads a live post authored by userID.
func (r *Resolver) ownPost(ctx context.Context, userID, id, action string) (post.Post, error) {
	p, err := r.livePost(ctx, userID, id)
	if err != nil {
		return post.Post{}, err
	}
	if p.AuthorID != userID {
		return post.Post{}, errors.Forbidden("Not authorized to " + action + " this post")
	}
	return p, nil
}

// ownComment loads a live comment authored by userID.
func (r *Resolver) ownComment(ctx context.Context, userID, id, action string) (post.Comment, error) {
	c, err := r.visibleComment(ctx, userID, id)
	if err != nil {
		return post.Comment{}, err
	}
	if c.IsDeleted {
		return post.Comment{}, errors.NotFound("Comment")
	}
	if c.AuthorID != userID {
		return post.Comment{}, errors.Forbidden("Not authorized to " + action + " this comment")
	}
	return c, nil
}

func (r *Resolver) publish(ctx context.Context, topic string, payload interface{}) {
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("topic", topic).Warn("Failed to publish post event")
	}
}

// added returns the ids in after that are not in before.
func added(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, id := range before {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range after {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
