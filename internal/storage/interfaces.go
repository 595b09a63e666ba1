// Package storage declares the persistence contracts of every service and an
// in-memory implementation used by tests and local development.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("storage: conflict")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (user.User, error)
	GetUserByResetToken(ctx context.Context, token string) (user.User, error)
	SearchUsers(ctx context.Context, query string, page domain.Page) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// FollowStore persists the follower graph. Follow and Unfollow report
// whether the edge actually changed.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]string, error)
	ListFollowing(ctx context.Context, userID string) ([]string, error)
}

// PostQuery filters post listings. Private posts are only returned to their
// author and soft-deleted posts are never listed.
type PostQuery struct {
	ViewerID  string
	AuthorIDs []string
	Hashtags  []string
	Mentions  []string
	IsPrivate *bool
	// ParentPostID nil matches any post; a pointer to "" matches top-level
	// posts only.
	ParentPostID *string
}

// PostStore persists posts, likes and shares.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	UpdatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, id string) (post.Post, error)
	ListPosts(ctx context.Context, q PostQuery, page domain.Page) ([]post.Post, error)
	SearchPosts(ctx context.Context, viewerID, query string, page domain.Page) ([]post.Post, error)
	TrendingHashtags(ctx context.Context, since time.Time, limit int) ([]string, error)

	LikePost(ctx context.Context, postID, userID string) (bool, error)
	UnlikePost(ctx context.Context, postID, userID string) (bool, error)
	PostLikes(ctx context.Context, postID string) ([]string, error)
	SharePost(ctx context.Context, postID, userID string, at time.Time) (bool, error)
	PostShares(ctx context.Context, postID string) ([]post.Share, error)
}

// CommentStore persists comments and their likes.
type CommentStore interface {
	CreateComment(ctx context.Context, c post.Comment) (post.Comment, error)
	UpdateComment(ctx context.Context, c post.Comment) (post.Comment, error)
	GetComment(ctx context.Context, id string) (post.Comment, error)
	// ListComments returns top-level comments of a post, newest first.
	ListComments(ctx context.Context, postID, authorID string, page domain.Page) ([]post.Comment, error)
	// ListReplies returns direct replies of a comment, oldest first.
	ListReplies(ctx context.Context, commentID string, page domain.Page) ([]post.Comment, error)
	CountComments(ctx context.Context, postID string) (int, error)
	CountReplies(ctx context.Context, commentID string) (int, error)

	LikeComment(ctx context.Context, commentID, userID string) (bool, error)
	UnlikeComment(ctx context.Context, commentID, userID string) (bool, error)
	CommentLikes(ctx context.Context, commentID string) ([]string, error)
}

// ChatStore persists chats and their participant counters.
type ChatStore interface {
	CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error)
	GetChat(ctx context.Context, id string) (chat.Chat, error)
	FindDirectChat(ctx context.Context, a, b string) (chat.Chat, error)
	// ListChats returns the chats of userID, most recently active first.
	ListChats(ctx context.Context, userID string, page domain.Page) ([]chat.Chat, error)
	UpdateChat(ctx context.Context, c chat.Chat) (chat.Chat, error)
	IncrementUnread(ctx context.Context, chatID, senderID string) error
	ResetUnread(ctx context.Context, chatID, userID string) error
	RemoveParticipant(ctx context.Context, chatID, userID string) error
}

// MessageStore persists messages and read receipts.
type MessageStore interface {
	CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	GetMessage(ctx context.Context, id string) (chat.Message, error)
	// ListMessages returns a newest-first window of a chat.
	ListMessages(ctx context.Context, chatID string, page domain.Page) ([]chat.Message, error)
	UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	// MarkChatRead adds a receipt for userID on every message lacking one.
	MarkChatRead(ctx context.Context, chatID, userID string, at time.Time) (int64, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotifications(ctx context.Context, recipientID string, f notification.Filter, page domain.Page) ([]notification.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// MarkAllRead returns the notifications that changed.
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) ([]notification.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
	// DeleteAllNotifications returns the ids that were removed.
	DeleteAllNotifications(ctx context.Context, recipientID string) ([]string, error)
}

// Stores bundles every store a service may need.
type Stores struct {
	Users         UserStore
	Follows       FollowStore
	Posts         PostStore
	Comments      CommentStore
	Chats         ChatStore
	Messages      MessageStore
	Notifications NotificationStore
}

// All is implemented by backends that serve every store.
type All interface {
	UserStore
	FollowStore
	PostStore
	CommentStore
	ChatStore
	MessageStore
	NotificationStore
}

// NewStores wires one backend into every slot.
func NewStores(backend All) Stores {
	return Stores{
		Users:         backend,
		Follows:       backend,
		Posts:         backend,
		Comments:      backend,
		Chats:         backend,
		Messages:      backend,
		Notifications: backend,
	}
}
