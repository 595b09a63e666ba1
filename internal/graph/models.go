package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/storage"
)

// DeletedUsername stands in for accounts removed after they authored content.
const DeletedUsername = "deleted"

// Models resolves the object types declared in the base schema. Every
// service holds one over the shared stores.
type Models struct {
	stores storage.Stores
}

// NewModels creates the shared object resolvers.
func NewModels(stores storage.Stores) *Models {
	return &Models{stores: stores}
}

// Stores exposes the stores the models read from.
func (m *Models) Stores() storage.Stores {
	return m.stores
}

// Viewer returns the principal id of ctx, or "" when anonymous.
func Viewer(ctx context.Context) string {
	if p := principal.FromContext(ctx); p != nil {
		return p.ID
	}
	return ""
}

// Time converts to the GraphQL scalar.
func Time(t time.Time) graphql.Time {
	return graphql.Time{Time: t}
}

// TimePtr converts an optional timestamp.
func TimePtr(t *time.Time) *graphql.Time {
	if t == nil {
		return nil
	}
	return &graphql.Time{Time: *t}
}

// OptString maps "" to null.
func OptString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IDs converts GraphQL ids to plain strings.
func IDs(ids []graphql.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

// StoreError classifies a storage error. ErrNotFound becomes NotFound for
// entity; anything else is wrapped as internal.
func StoreError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound(entity)
	}
	if errors.GetServiceError(err) != nil {
		return err
	}
	return errors.Internal(fmt.Sprintf("load %s", entity), err)
}

// =============================================================================
// Lookups
// =============================================================================

// UserByID resolves a user, substituting a placeholder for deleted accounts.
func (m *Models) UserByID(ctx context.Context, id string) (*UserResolver, error) {
	u, err := m.stores.Users.GetUser(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return m.User(user.User{ID: id, Username: DeletedUsername}), nil
	}
	if err != nil {
		return nil, StoreError(err, "User")
	}
	return m.User(u), nil
}

// UsersByID resolves users in order and skips ids that no longer exist.
func (m *Models) UsersByID(ctx context.Context, ids []string) ([]*UserResolver, error) {
	out := make([]*UserResolver, 0, len(ids))
	for _, id := range ids {
		u, err := m.stores.Users.GetUser(ctx, id)
		if stderrors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, StoreError(err, "User")
		}
		out = append(out, m.User(u))
	}
	return out, nil
}

// PostByID resolves a post visible to the viewer, or nil.
func (m *Models) PostByID(ctx context.Context, id string) (*PostResolver, error) {
	if id == "" {
		return nil, nil
	}
	p, err := m.stores.Posts.GetPost(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError(err, "Post")
	}
	if !post.VisibleTo(p, Viewer(ctx)) {
		return nil, nil
	}
	return m.Post(p), nil
}

// CommentByID resolves a comment, or nil.
func (m *Models) CommentByID(ctx context.Context, id string) (*CommentResolver, error) {
	if id == "" {
		return nil, nil
	}
	c, err := m.stores.Comments.GetComment(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError(err, "Comment")
	}
	return m.Comment(c), nil
}

// ChatByID resolves a chat the viewer participates in, or nil.
func (m *Models) ChatByID(ctx context.Context, id string) (*ChatResolver, error) {
	if id == "" {
		return nil, nil
	}
	c, err := m.stores.Chats.GetChat(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError(err, "Chat")
	}
	if !chat.IsParticipant(c, Viewer(ctx)) {
		return nil, nil
	}
	return m.Chat(c), nil
}

// MessageByID resolves a message, or nil.
func (m *Models) MessageByID(ctx context.Context, id string) (*MessageResolver, error) {
	if id == "" {
		return nil, nil
	}
	msg, err := m.stores.Messages.GetMessage(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError(err, "Message")
	}
	return m.Message(msg), nil
}

// =============================================================================
// User
// =============================================================================

// User wraps a user record.
func (m *Models) User(u user.User) *UserResolver {
	return &UserResolver{m: m, u: u}
}

// Users wraps a slice of user records.
func (m *Models) Users(us []user.User) []*UserResolver {
	out := make([]*UserResolver, 0, len(us))
	for _, u := range us {
		out = append(out, m.User(u))
	}
	return out
}

type UserResolver struct {
	m *Models
	u user.User
}

// Record returns the wrapped user.
func (r *UserResolver) Record() user.User { return r.u }

func (r *UserResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }

// Email is only disclosed to the account owner.
func (r *UserResolver) Email(ctx context.Context) *string {
	if Viewer(ctx) != r.u.ID {
		return nil
	}
	return OptString(r.u.Email)
}

func (r *UserResolver) Username() string { return r.u.Username }
func (r *UserResolver) FullName() *string { return OptString(r.u.FullName) }
func (r *UserResolver) Bio() *string { return OptString(r.u.Bio) }
func (r *UserResolver) Avatar() *string { return OptString(r.u.Avatar) }
func (r *UserResolver) IsVerified() bool { return r.u.IsVerified }
func (r *UserResolver) CreatedAt() graphql.Time { return Time(r.u.CreatedAt) }
func (r *UserResolver) UpdatedAt() graphql.Time { return Time(r.u.UpdatedAt) }

func (r *UserResolver) LastActive() *graphql.Time {
	if r.u.LastActive.IsZero() {
		return nil
	}
	return &graphql.Time{Time: r.u.LastActive}
}

func (r *UserResolver) Followers(ctx context.Context) ([]*UserResolver, error) {
	ids, err := r.m.stores.Follows.ListFollowers(ctx, r.u.ID)
	if err != nil {
		return nil, StoreError(err, "Followers")
	}
	return r.m.UsersByID(ctx, ids)
}

func (r *UserResolver) Following(ctx context.Context) ([]*UserResolver, error) {
	ids, err := r.m.stores.Follows.ListFollowing(ctx, r.u.ID)
	if err != nil {
		return nil, StoreError(err, "Following")
	}
	return r.m.UsersByID(ctx, ids)
}

func (r *UserResolver) FollowersCount(ctx context.Context) (int32, error) {
	ids, err := r.m.stores.Follows.ListFollowers(ctx, r.u.ID)
	if err != nil {
		return 0, StoreError(err, "Followers")
	}
	return int32(len(ids)), nil
}

func (r *UserResolver) FollowingCount(ctx context.Context) (int32, error) {
	ids, err := r.m.stores.Follows.ListFollowing(ctx, r.u.ID)
	if err != nil {
		return 0, StoreError(err, "Following")
	}
	return int32(len(ids)), nil
}

// IsFollowing reports whether the viewer follows this user.
func (r *UserResolver) IsFollowing(ctx context.Context) (bool, error) {
	viewer := Viewer(ctx)
	if viewer == "" || viewer == r.u.ID {
		return false, nil
	}
	ok, err := r.m.stores.Follows.IsFollowing(ctx, viewer, r.u.ID)
	if err != nil {
		return false, StoreError(err, "Follow")
	}
	return ok, nil
}

// =============================================================================
// Post
// =============================================================================

// Post wraps a post record.
func (m *Models) Post(p post.Post) *PostResolver {
	return &PostResolver{m: m, p: p}
}

// Posts wraps a slice of post records.
func (m *Models) Posts(ps []post.Post) []*PostResolver {
	out := make([]*PostResolver, 0, len(ps))
	for _, p := range ps {
		out = append(out, m.Post(p))
	}
	return out
}

type PostResolver struct {
	m *Models
	p post.Post
}

// Record returns the wrapped post.
func (r *PostResolver) Record() post.Post { return r.p }

func (r *PostResolver) ID() graphql.ID { return graphql.ID(r.p.ID) }
func (r *PostResolver) Content() string { return r.p.Content }
func (r *PostResolver) Hashtags() []string { return nonNil(r.p.Hashtags) }
func (r *PostResolver) IsPrivate() bool { return r.p.IsPrivate }
func (r *PostResolver) IsEdited() bool { return r.p.IsEdited }
func (r *PostResolver) EditedAt() *graphql.Time { return TimePtr(r.p.EditedAt) }
func (r *PostResolver) IsDeleted() bool { return r.p.IsDeleted }
func (r *PostResolver) DeletedAt() *graphql.Time { return TimePtr(r.p.DeletedAt) }
func (r *PostResolver) CreatedAt() graphql.Time { return Time(r.p.CreatedAt) }
func (r *PostResolver) UpdatedAt() graphql.Time { return Time(r.p.UpdatedAt) }

func (r *PostResolver) Author(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.p.AuthorID)
}

func (r *PostResolver) Media() []*MediaResolver {
	out := make([]*MediaResolver, 0, len(r.p.Media))
	for _, md := range r.p.Media {
		out = append(out, &MediaResolver{md: md})
	}
	return out
}

func (r *PostResolver) Mentions(ctx context.Context) ([]*UserResolver, error) {
	return r.m.UsersByID(ctx, r.p.Mentions)
}

func (r *PostResolver) Location() *LocationResolver {
	if r.p.Location == nil {
		return nil
	}
	return &LocationResolver{loc: *r.p.Location}
}

func (r *PostResolver) ParentPost(ctx context.Context) (*PostResolver, error) {
	return r.m.PostByID(ctx, r.p.ParentPostID)
}

func (r *PostResolver) Likes(ctx context.Context) ([]*UserResolver, error) {
	ids, err := r.m.stores.Posts.PostLikes(ctx, r.p.ID)
	if err != nil {
		return nil, StoreError(err, "Likes")
	}
	return r.m.UsersByID(ctx, ids)
}

func (r *PostResolver) LikesCount(ctx context.Context) (int32, error) {
	ids, err := r.m.stores.Posts.PostLikes(ctx, r.p.ID)
	if err != nil {
		return 0, StoreError(err, "Likes")
	}
	return int32(len(ids)), nil
}

func (r *PostResolver) IsLiked(ctx context.Context) (bool, error) {
	viewer := Viewer(ctx)
	if viewer == "" {
		return false, nil
	}
	ids, err := r.m.stores.Posts.PostLikes(ctx, r.p.ID)
	if err != nil {
		return false, StoreError(err, "Likes")
	}
	return contains(ids, viewer), nil
}

func (r *PostResolver) Shares(ctx context.Context) ([]*ShareResolver, error) {
	shares, err := r.m.stores.Posts.PostShares(ctx, r.p.ID)
	if err != nil {
		return nil, StoreError(err, "Shares")
	}
	out := make([]*ShareResolver, 0, len(shares))
	for _, s := range shares {
		out = append(out, &ShareResolver{m: r.m, s: s})
	}
	return out, nil
}

func (r *PostResolver) SharesCount(ctx context.Context) (int32, error) {
	shares, err := r.m.stores.Posts.PostShares(ctx, r.p.ID)
	if err != nil {
		return 0, StoreError(err, "Shares")
	}
	return int32(len(shares)), nil
}

func (r *PostResolver) CommentsCount(ctx context.Context) (int32, error) {
	n, err := r.m.stores.Comments.CountComments(ctx, r.p.ID)
	if err != nil {
		return 0, StoreError(err, "Comments")
	}
	return int32(n), nil
}

type MediaResolver struct {
	md post.Media
}

func (r *MediaResolver) Type() string { return string(r.md.Type) }
func (r *MediaResolver) URL() string { return r.md.URL }
func (r *MediaResolver) Thumbnail() *string { return OptString(r.md.Thumbnail) }
func (r *MediaResolver) Width() *int32 { return int32Ptr(r.md.Width) }
func (r *MediaResolver) Height() *int32 { return int32Ptr(r.md.Height) }
func (r *MediaResolver) Duration() *float64 { return r.md.Duration }

type LocationResolver struct {
	loc post.Location
}

func (r *LocationResolver) Name() *string { return OptString(r.loc.Name) }
func (r *LocationResolver) Latitude() float64 { return r.loc.Latitude }
func (r *LocationResolver) Longitude() float64 { return r.loc.Longitude }

type ShareResolver struct {
	m *Models
	s post.Share
}

func (r *ShareResolver) User(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.s.UserID)
}

func (r *ShareResolver) SharedAt() graphql.Time { return Time(r.s.SharedAt) }

// =============================================================================
// Comment
// =============================================================================

// Comment wraps a comment record.
func (m *Models) Comment(c post.Comment) *CommentResolver {
	return &CommentResolver{m: m, c: c}
}

// Comments wraps a slice of comment records.
func (m *Models) Comments(cs []post.Comment) []*CommentResolver {
	out := make([]*CommentResolver, 0, len(cs))
	for _, c := range cs {
		out = append(out, m.Comment(c))
	}
	return out
}

type CommentResolver struct {
	m *Models
	c post.Comment
}

// Record returns the wrapped comment.
func (r *CommentResolver) Record() post.Comment { return r.c }

func (r *CommentResolver) ID() graphql.ID { return graphql.ID(r.c.ID) }
func (r *CommentResolver) Content() string { return r.c.Content }
func (r *CommentResolver) Hashtags() []string { return nonNil(r.c.Hashtags) }
func (r *CommentResolver) IsEdited() bool { return r.c.IsEdited }
func (r *CommentResolver) EditedAt() *graphql.Time { return TimePtr(r.c.EditedAt) }
func (r *CommentResolver) IsDeleted() bool { return r.c.IsDeleted }
func (r *CommentResolver) DeletedAt() *graphql.Time { return TimePtr(r.c.DeletedAt) }
func (r *CommentResolver) CreatedAt() graphql.Time { return Time(r.c.CreatedAt) }
func (r *CommentResolver) UpdatedAt() graphql.Time { return Time(r.c.UpdatedAt) }

func (r *CommentResolver) Post(ctx context.Context) (*PostResolver, error) {
	p, err := r.m.stores.Posts.GetPost(ctx, r.c.PostID)
	if err != nil {
		return nil, StoreError(err, "Post")
	}
	return r.m.Post(p), nil
}

func (r *CommentResolver) Author(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.c.AuthorID)
}

func (r *CommentResolver) Mentions(ctx context.Context) ([]*UserResolver, error) {
	return r.m.UsersByID(ctx, r.c.Mentions)
}

func (r *CommentResolver) ParentComment(ctx context.Context) (*CommentResolver, error) {
	return r.m.CommentByID(ctx, r.c.ParentCommentID)
}

// PageArgs are the optional limit/offset arguments of list fields.
type PageArgs struct {
	Limit  *int32
	Offset *int32
}

// Page clamps the arguments.
func (a PageArgs) Page() domain.Page {
	return domain.NewPage(a.Limit, a.Offset)
}

func (r *CommentResolver) Replies(ctx context.Context, args PageArgs) ([]*CommentResolver, error) {
	replies, err := r.m.stores.Comments.ListReplies(ctx, r.c.ID, args.Page())
	if err != nil {
		return nil, StoreError(err, "Comments")
	}
	return r.m.Comments(replies), nil
}

func (r *CommentResolver) RepliesCount(ctx context.Context) (int32, error) {
	n, err := r.m.stores.Comments.CountReplies(ctx, r.c.ID)
	if err != nil {
		return 0, StoreError(err, "Comments")
	}
	return int32(n), nil
}

func (r *CommentResolver) Likes(ctx context.Context) ([]*UserResolver, error) {
	ids, err := r.m.stores.Comments.CommentLikes(ctx, r.c.ID)
	if err != nil {
		return nil, StoreError(err, "Likes")
	}
	return r.m.UsersByID(ctx, ids)
}

func (r *CommentResolver) LikesCount(ctx context.Context) (int32, error) {
	ids, err := r.m.stores.Comments.CommentLikes(ctx, r.c.ID)
	if err != nil {
		return 0, StoreError(err, "Likes")
	}
	return int32(len(ids)), nil
}

func (r *CommentResolver) IsLiked(ctx context.Context) (bool, error) {
	viewer := Viewer(ctx)
	if viewer == "" {
		return false, nil
	}
	ids, err := r.m.stores.Comments.CommentLikes(ctx, r.c.ID)
	if err != nil {
		return false, StoreError(err, "Likes")
	}
	return contains(ids, viewer), nil
}

// =============================================================================
// Chat
// =============================================================================

// Chat wraps a chat record.
func (m *Models) Chat(c chat.Chat) *ChatResolver {
	return &ChatResolver{m: m, c: c}
}

// Chats wraps a slice of chat records.
func (m *Models) Chats(cs []chat.Chat) []*ChatResolver {
	out := make([]*ChatResolver, 0, len(cs))
	for _, c := range cs {
		out = append(out, m.Chat(c))
	}
	return out
}

type ChatResolver struct {
	m *Models
	c chat.Chat
}

// Record returns the wrapped chat.
func (r *ChatResolver) Record() chat.Chat { return r.c }

func (r *ChatResolver) ID() graphql.ID { return graphql.ID(r.c.ID) }
func (r *ChatResolver) Type() string { return string(r.c.Type) }
func (r *ChatResolver) Name() *string { return OptString(r.c.Name) }
func (r *ChatResolver) IsActive() bool { return r.c.IsActive }
func (r *ChatResolver) CreatedAt() graphql.Time { return Time(r.c.CreatedAt) }
func (r *ChatResolver) UpdatedAt() graphql.Time { return Time(r.c.UpdatedAt) }

func (r *ChatResolver) Creator(ctx context.Context) (*UserResolver, error) {
	if r.c.CreatorID == "" {
		return nil, nil
	}
	return r.m.UserByID(ctx, r.c.CreatorID)
}

func (r *ChatResolver) Participants(ctx context.Context) ([]*UserResolver, error) {
	return r.m.UsersByID(ctx, r.c.Participants)
}

func (r *ChatResolver) LastMessage(ctx context.Context) (*MessageResolver, error) {
	return r.m.MessageByID(ctx, r.c.LastMessageID)
}

// UnreadCount is the viewer's counter.
func (r *ChatResolver) UnreadCount(ctx context.Context) int32 {
	return int32(chat.UnreadFor(r.c, Viewer(ctx)))
}

// =============================================================================
// Message
// =============================================================================

// Message wraps a message record.
func (m *Models) Message(msg chat.Message) *MessageResolver {
	return &MessageResolver{m: m, msg: msg}
}

// Messages wraps a slice of message records.
func (m *Models) Messages(ms []chat.Message) []*MessageResolver {
	out := make([]*MessageResolver, 0, len(ms))
	for _, msg := range ms {
		out = append(out, m.Message(msg))
	}
	return out
}

type MessageResolver struct {
	m   *Models
	msg chat.Message
}

// Record returns the wrapped message.
func (r *MessageResolver) Record() chat.Message { return r.msg }

func (r *MessageResolver) ID() graphql.ID { return graphql.ID(r.msg.ID) }
func (r *MessageResolver) Content() string { return r.msg.Content }
func (r *MessageResolver) Type() string { return string(r.msg.Type) }
func (r *MessageResolver) FileURL() *string { return OptString(r.msg.FileURL) }
func (r *MessageResolver) IsDeleted() bool { return r.msg.IsDeleted }
func (r *MessageResolver) DeletedAt() *graphql.Time { return TimePtr(r.msg.DeletedAt) }
func (r *MessageResolver) CreatedAt() graphql.Time { return Time(r.msg.CreatedAt) }
func (r *MessageResolver) UpdatedAt() graphql.Time { return Time(r.msg.UpdatedAt) }

func (r *MessageResolver) Chat(ctx context.Context) (*ChatResolver, error) {
	c, err := r.m.stores.Chats.GetChat(ctx, r.msg.ChatID)
	if err != nil {
		return nil, StoreError(err, "Chat")
	}
	return r.m.Chat(c), nil
}

func (r *MessageResolver) Sender(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.msg.SenderID)
}

func (r *MessageResolver) ReplyTo(ctx context.Context) (*MessageResolver, error) {
	return r.m.MessageByID(ctx, r.msg.ReplyToID)
}

func (r *MessageResolver) ReadBy() []*ReadResolver {
	out := make([]*ReadResolver, 0, len(r.msg.ReadBy))
	for _, rd := range r.msg.ReadBy {
		out = append(out, &ReadResolver{m: r.m, rd: rd})
	}
	return out
}

// IsRead reports whether the viewer has read the message.
func (r *MessageResolver) IsRead(ctx context.Context) bool {
	return chat.ReadByUser(r.msg, Viewer(ctx))
}

type ReadResolver struct {
	m  *Models
	rd chat.Read
}

func (r *ReadResolver) User(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.rd.UserID)
}

func (r *ReadResolver) ReadAt() graphql.Time { return Time(r.rd.ReadAt) }

// =============================================================================
// Notification
// =============================================================================

// Notification wraps a notification record.
func (m *Models) Notification(n notification.Notification) *NotificationResolver {
	return &NotificationResolver{m: m, n: n}
}

// Notifications wraps a slice of notification records.
func (m *Models) Notifications(ns []notification.Notification) []*NotificationResolver {
	out := make([]*NotificationResolver, 0, len(ns))
	for _, n := range ns {
		out = append(out, m.Notification(n))
	}
	return out
}

type NotificationResolver struct {
	m *Models
	n notification.Notification
}

// Record returns the wrapped notification.
func (r *NotificationResolver) Record() notification.Notification { return r.n }

func (r *NotificationResolver) ID() graphql.ID { return graphql.ID(r.n.ID) }
func (r *NotificationResolver) Type() string { return string(r.n.Type) }
func (r *NotificationResolver) IsRead() bool { return r.n.IsRead }
func (r *NotificationResolver) CreatedAt() graphql.Time { return Time(r.n.CreatedAt) }
func (r *NotificationResolver) UpdatedAt() graphql.Time { return Time(r.n.UpdatedAt) }

func (r *NotificationResolver) Recipient(ctx context.Context) (*UserResolver, error) {
	return r.m.UserByID(ctx, r.n.RecipientID)
}

func (r *NotificationResolver) Sender(ctx context.Context) (*UserResolver, error) {
	if r.n.SenderID == "" {
		return nil, nil
	}
	return r.m.UserByID(ctx, r.n.SenderID)
}

func (r *NotificationResolver) Post(ctx context.Context) (*PostResolver, error) {
	return r.m.PostByID(ctx, r.n.PostID)
}

func (r *NotificationResolver) Comment(ctx context.Context) (*CommentResolver, error) {
	return r.m.CommentByID(ctx, r.n.CommentID)
}

func (r *NotificationResolver) Chat(ctx context.Context) (*ChatResolver, error) {
	return r.m.ChatByID(ctx, r.n.ChatID)
}

func (r *NotificationResolver) Message(ctx context.Context) (*MessageResolver, error) {
	return r.m.MessageByID(ctx, r.n.MessageID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
