package posts

import (
	"context"
	"strings"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/storage"
)

func (r *Resolver) Posts(ctx context.Context, args PostsArgs) ([]*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	q := storage.PostQuery{ViewerID: p.ID}
	if f := args.Filter; f != nil {
		if f.Author != nil {
			q.AuthorIDs = []string{string(*f.Author)}
		}
		if f.Hashtags != nil {
			q.Hashtags = *f.Hashtags
		}
		if f.Mentions != nil {
			q.Mentions = graph.IDs(*f.Mentions)
		}
		q.IsPrivate = f.IsPrivate
		if f.ParentPost != nil {
			parent := string(*f.ParentPost)
			q.ParentPostID = &parent
		}
	}
	return r.listPosts(ctx, q, args.Page())
}

// Post returns a post the caller may see. A deleted post keeps resolving
// with its placeholder content so that threads referencing it stay intact.
func (r *Resolver) Post(ctx context.Context, args IDArgs) (*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	found, err := r.visiblePost(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}
	return r.models.Post(found), nil
}

func (r *Resolver) UserPosts(ctx context.Context, args UserPostsArgs) ([]*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	return r.listPosts(ctx, storage.PostQuery{
		ViewerID:  p.ID,
		AuthorIDs: []string{string(args.UserID)},
	}, args.Page())
}

// FeedPosts lists the caller's own posts and those of the accounts they
// follow, newest first.
func (r *Resolver) FeedPosts(ctx context.Context, args graph.PageArgs) ([]*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	following, err := r.stores.Follows.ListFollowing(ctx, p.ID)
	if err != nil {
		return nil, graph.StoreError(err, "Follow")
	}
	return r.listPosts(ctx, storage.PostQuery{
		ViewerID:  p.ID,
		AuthorIDs: append([]string{p.ID}, following...),
	}, args.Page())
}

func (r *Resolver) Comments(ctx context.Context, args CommentsArgs) ([]*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.visiblePost(ctx, p.ID, string(args.PostID)); err != nil {
		return nil, err
	}
	var authorID string
	if args.Filter != nil && args.Filter.Author != nil {
		authorID = string(*args.Filter.Author)
	}
	comments, err := r.stores.Comments.ListComments(ctx, string(args.PostID), authorID, args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "Comment")
	}
	return r.models.Comments(comments), nil
}

func (r *Resolver) Comment(ctx context.Context, args IDArgs) (*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.visibleComment(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}
	return r.models.Comment(c), nil
}

// CommentReplies lists direct replies oldest first.
func (r *Resolver) CommentReplies(ctx context.Context, args RepliesArgs) ([]*graph.CommentResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.visibleComment(ctx, p.ID, string(args.CommentID)); err != nil {
		return nil, err
	}
	replies, err := r.stores.Comments.ListReplies(ctx, string(args.CommentID), args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "Comment")
	}
	return r.models.Comments(replies), nil
}

// SearchPosts matches content or hashtags, case-insensitively.
func (r *Resolver) SearchPosts(ctx context.Context, args SearchArgs) ([]*graph.PostResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.TrimSpace(args.Query)
	if q == "" {
		return []*graph.PostResolver{}, nil
	}
	found, err := r.stores.Posts.SearchPosts(ctx, p.ID, q, args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}
	return r.models.Posts(found), nil
}

// TrendingHashtags ranks the hashtags of recent public posts by use.
func (r *Resolver) TrendingHashtags(ctx context.Context, args struct{ Limit *int32 }) ([]string, error) {
	if _, err := principal.Require(ctx); err != nil {
		return nil, err
	}
	limit := 10
	if args.Limit != nil {
		limit = int(*args.Limit)
	}
	if limit < 1 {
		return nil, errors.Validation("limit must be positive").WithDetails("field", "limit")
	}
	if limit > MaxTrending {
		limit = MaxTrending
	}
	tags, err := r.stores.Posts.TrendingHashtags(ctx, r.now().Add(-TrendingWindow), limit)
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (r *Resolver) listPosts(ctx context.Context, q storage.PostQuery, page domain.Page) ([]*graph.PostResolver, error) {
	found, err := r.stores.Posts.ListPosts(ctx, q, page)
	if err != nil {
		return nil, graph.StoreError(err, "Post")
	}
	return r.models.Posts(found), nil
}

// visiblePost loads a post the viewer may see. Private posts of other
// authors are reported as missing.
func (r *Resolver) visiblePost(ctx context.Context, viewerID, id string) (post.Post, error) {
	p, err := r.stores.Posts.GetPost(ctx, id)
	if err != nil {
		return post.Post{}, graph.StoreError(err, "Post")
	}
	if !post.VisibleTo(p, viewerID) {
		return post.Post{}, errors.NotFound("Post")
	}
	return p, nil
}

// livePost is visiblePost for posts that can still be interacted with.
func (r *Resolver) livePost(ctx context.Context, viewerID, id string) (post.Post, error) {
	p, err := r.visiblePost(ctx, viewerID, id)
	if err != nil {
		return post.Post{}, err
	}
	if p.IsDeleted {
		return post.Post{}, errors.NotFound("Post")
	}
	return p, nil
}

// visibleComment loads a comment whose post the viewer may see.
func (r *Resolver) visibleComment(ctx context.Context, viewerID, id string) (post.Comment, error) {
	c, err := r.stores.Comments.GetComment(ctx, id)
	if err != nil {
		return post.Comment{}, graph.StoreError(err, "Comment")
	}
	if _, err := r.visiblePost(ctx, viewerID, c.PostID); err != nil {
		return post.Comment{}, errors.NotFound("Comment")
	}
	return c, nil
}
