// Package posts serves posts, comments, likes and shares.
package posts

import (
	"context"
	_ "embed"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/notify"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/services/common/service"
)

const (
	ServiceName = "posts"
	Version     = "1.0.0"
	DefaultPort = 4002

	// TrendingWindow bounds the posts counted by trendingHashtags.
	TrendingWindow = 7 * 24 * time.Hour
	// MaxTrending caps the trendingHashtags limit.
	MaxTrending = 50
)

//go:embed schema.graphql
var Schema string

// Source is the posts schema fragment.
func Source() graph.Source {
	return graph.Source{Name: "posts.graphql", SDL: Schema}
}

// QueryResolver lists the posts queries.
type QueryResolver interface {
	Posts(ctx context.Context, args PostsArgs) ([]*graph.PostResolver, error)
	Post(ctx context.Context, args IDArgs) (*graph.PostResolver, error)
	UserPosts(ctx context.Context, args UserPostsArgs) ([]*graph.PostResolver, error)
	FeedPosts(ctx context.Context, args graph.PageArgs) ([]*graph.PostResolver, error)
	Comments(ctx context.Context, args CommentsArgs) ([]*graph.CommentResolver, error)
	Comment(ctx context.Context, args IDArgs) (*graph.CommentResolver, error)
	CommentReplies(ctx context.Context, args RepliesArgs) ([]*graph.CommentResolver, error)
	SearchPosts(ctx context.Context, args SearchArgs) ([]*graph.PostResolver, error)
	TrendingHashtags(ctx context.Context, args struct{ Limit *int32 }) ([]string, error)
}

// MutationResolver lists the posts mutations.
type MutationResolver interface {
	CreatePost(ctx context.Context, args struct{ Input CreatePostInput }) (*graph.PostResolver, error)
	UpdatePost(ctx context.Context, args UpdatePostArgs) (*graph.PostResolver, error)
	DeletePost(ctx context.Context, args IDArgs) (bool, error)
	TogglePostLike(ctx context.Context, args IDArgs) (*graph.PostResolver, error)
	SharePost(ctx context.Context, args IDArgs) (*graph.PostResolver, error)
	CreateComment(ctx context.Context, args struct{ Input CreateCommentInput }) (*graph.CommentResolver, error)
	UpdateComment(ctx context.Context, args UpdateCommentArgs) (*graph.CommentResolver, error)
	DeleteComment(ctx context.Context, args IDArgs) (bool, error)
	ToggleCommentLike(ctx context.Context, args IDArgs) (*graph.CommentResolver, error)
}

// SubscriptionResolver lists the posts subscriptions.
type SubscriptionResolver interface {
	PostAdded(ctx context.Context) (<-chan *graph.PostResolver, error)
	PostUpdated(ctx context.Context) (<-chan *graph.PostResolver, error)
	PostDeleted(ctx context.Context) (<-chan graphql.ID, error)
	CommentAdded(ctx context.Context, args CommentTopicArgs) (<-chan *graph.CommentResolver, error)
	CommentUpdated(ctx context.Context, args CommentTopicArgs) (<-chan *graph.CommentResolver, error)
	CommentDeleted(ctx context.Context, args CommentTopicArgs) (<-chan graphql.ID, error)
}

var (
	_ QueryResolver        = (*Resolver)(nil)
	_ MutationResolver     = (*Resolver)(nil)
	_ SubscriptionResolver = (*Resolver)(nil)
)

// Resolver implements the posts root fields.
type Resolver struct {
	models    *graph.Models
	stores    storage.Stores
	publisher pubsub.Publisher
	registry  pubsub.Subscriber
	notifier  *notify.Notifier
	logger    *logging.Logger
	now       func() time.Time
}

// NewResolver builds the posts resolver over deps.
func NewResolver(deps *service.Deps) *Resolver {
	return &Resolver{
		models:    deps.Models,
		stores:    deps.Stores,
		publisher: deps.Registry,
		registry:  deps.Registry,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// Arguments
// =============================================================================

// IDArgs selects one record.
type IDArgs struct {
	ID graphql.ID
}

// PostFilter narrows the posts query.
type PostFilter struct {
	Author     *graphql.ID
	Hashtags   *[]string
	Mentions   *[]graphql.ID
	IsPrivate  *bool
	ParentPost *graphql.ID
}

type PostsArgs struct {
	graph.PageArgs
	Filter *PostFilter
}

type UserPostsArgs struct {
	UserID graphql.ID
	graph.PageArgs
}

// CommentFilter narrows the comments query.
type CommentFilter struct {
	Author *graphql.ID
}

type CommentsArgs struct {
	PostID graphql.ID
	graph.PageArgs
	Filter *CommentFilter
}

type RepliesArgs struct {
	CommentID graphql.ID
	graph.PageArgs
}

type SearchArgs struct {
	Query string
	graph.PageArgs
}

// CommentTopicArgs optionally narrows comment subscriptions to one post.
type CommentTopicArgs struct {
	PostID *graphql.ID
}

type MediaInput struct {
	Type      string
	URL       string
	Thumbnail *string
	Width     *int32
	Height    *int32
	Duration  *float64
}

type LocationInput struct {
	Name      *string
	Latitude  float64
	Longitude float64
}

type CreatePostInput struct {
	Content      string
	Media        *[]MediaInput
	Mentions     *[]graphql.ID
	Hashtags     *[]string
	Location     *LocationInput
	IsPrivate    *bool
	ParentPostID *graphql.ID
}

type UpdatePostInput struct {
	Content   *string
	Media     *[]MediaInput
	Mentions  *[]graphql.ID
	Hashtags  *[]string
	Location  *LocationInput
	IsPrivate *bool
}

type UpdatePostArgs struct {
	ID    graphql.ID
	Input UpdatePostInput
}

type CreateCommentInput struct {
	PostID          graphql.ID
	Content         string
	Mentions        *[]graphql.ID
	Hashtags        *[]string
	ParentCommentID *graphql.ID
}

type UpdateCommentInput struct {
	Content  string
	Mentions *[]graphql.ID
	Hashtags *[]string
}

type UpdateCommentArgs struct {
	ID    graphql.ID
	Input UpdateCommentInput
}

// =============================================================================
// Input conversion
// =============================================================================

func (in CreatePostInput) toDomain() post.Input {
	out := post.Input{
		Content:   in.Content,
		Location:  toLocation(in.Location),
		IsPrivate: in.IsPrivate != nil && *in.IsPrivate,
	}
	if in.Media != nil {
		out.Media = toMedia(*in.Media)
	}
	if in.Mentions != nil {
		out.Mentions = graph.IDs(*in.Mentions)
	}
	if in.Hashtags != nil {
		out.Hashtags = *in.Hashtags
	}
	if in.ParentPostID != nil {
		out.ParentPostID = string(*in.ParentPostID)
	}
	return out
}

func (in UpdatePostInput) toDomain() post.Edit {
	out := post.Edit{
		Content:   in.Content,
		Hashtags:  in.Hashtags,
		Location:  toLocation(in.Location),
		IsPrivate: in.IsPrivate,
	}
	if in.Media != nil {
		media := toMedia(*in.Media)
		out.Media = &media
	}
	if in.Mentions != nil {
		mentions := graph.IDs(*in.Mentions)
		out.Mentions = &mentions
	}
	return out
}

func (in CreateCommentInput) toDomain() post.CommentInput {
	out := post.CommentInput{
		PostID:  string(in.PostID),
		Content: in.Content,
	}
	if in.Mentions != nil {
		out.Mentions = graph.IDs(*in.Mentions)
	}
	if in.Hashtags != nil {
		out.Hashtags = *in.Hashtags
	}
	if in.ParentCommentID != nil {
		out.ParentCommentID = string(*in.ParentCommentID)
	}
	return out
}

func (in UpdateCommentInput) toDomain() post.CommentEdit {
	out := post.CommentEdit{
		Content:  in.Content,
		Hashtags: in.Hashtags,
	}
	if in.Mentions != nil {
		mentions := graph.IDs(*in.Mentions)
		out.Mentions = &mentions
	}
	return out
}

func toMedia(in []MediaInput) []post.Media {
	out := make([]post.Media, 0, len(in))
	for _, m := range in {
		item := post.Media{
			Type:     post.MediaType(m.Type),
			URL:      m.URL,
			Duration: m.Duration,
		}
		if m.Thumbnail != nil {
			item.Thumbnail = *m.Thumbnail
		}
		item.Width = intPtr(m.Width)
		item.Height = intPtr(m.Height)
		out = append(out, item)
	}
	return out
}

func toLocation(in *LocationInput) *post.Location {
	if in == nil {
		return nil
	}
	loc := &post.Location{Latitude: in.Latitude, Longitude: in.Longitude}
	if in.Name != nil {
		loc.Name = *in.Name
	}
	return loc
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
