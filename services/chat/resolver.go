// Package chat serves direct and group conversations.
package chat

import (
	"context"
	_ "embed"
	"sync"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	chatmodel "github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/notify"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/services/common/service"
)

const (
	ServiceName = "chat"
	Version     = "1.0.0"
	DefaultPort = 4003
)

//go:embed schema.graphql
var Schema string

// Source is the chat schema fragment.
func Source() graph.Source {
	return graph.Source{Name: "chat.graphql", SDL: Schema}
}

// QueryResolver lists the chat queries.
type QueryResolver interface {
	MyChats(ctx context.Context, args graph.PageArgs) ([]*graph.ChatResolver, error)
	Chat(ctx context.Context, args IDArgs) (*graph.ChatResolver, error)
	Messages(ctx context.Context, args MessagesArgs) ([]*graph.MessageResolver, error)
	UnreadCounts(ctx context.Context) ([]*UnreadCountResolver, error)
}

// MutationResolver lists the chat mutations.
type MutationResolver interface {
	CreateChat(ctx context.Context, args struct{ Input CreateChatInput }) (*graph.ChatResolver, error)
	SendMessage(ctx context.Context, args struct{ Input SendMessageInput }) (*graph.MessageResolver, error)
	UpdateChat(ctx context.Context, args UpdateChatArgs) (*graph.ChatResolver, error)
	MarkMessagesAsRead(ctx context.Context, args ChatArgs) (bool, error)
	DeleteMessage(ctx context.Context, args IDArgs) (bool, error)
	LeaveChat(ctx context.Context, args IDArgs) (bool, error)
}

// SubscriptionResolver lists the chat subscriptions.
type SubscriptionResolver interface {
	MessageAdded(ctx context.Context, args ChatArgs) (<-chan *graph.MessageResolver, error)
	MessageUpdated(ctx context.Context, args ChatArgs) (<-chan *graph.MessageResolver, error)
	ChatUpdated(ctx context.Context, args ChatArgs) (<-chan *graph.ChatResolver, error)
}

var (
	_ QueryResolver        = (*Resolver)(nil)
	_ MutationResolver     = (*Resolver)(nil)
	_ SubscriptionResolver = (*Resolver)(nil)
)

// Resolver implements the chat root fields.
type Resolver struct {
	models    *graph.Models
	stores    storage.Stores
	publisher pubsub.Publisher
	registry  pubsub.Subscriber
	notifier  *notify.Notifier
	logger    *logging.Logger
	now       func() time.Time

	// serializes the find-or-create of direct chats
	directMu sync.Mutex
}

// NewResolver builds the chat resolver over deps.
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

type IDArgs struct {
	ID graphql.ID
}

// ChatArgs selects a chat by id.
type ChatArgs struct {
	ChatID graphql.ID
}

type MessagesArgs struct {
	ChatID graphql.ID
	graph.PageArgs
}

type CreateChatInput struct {
	ParticipantIDs []graphql.ID
	Type           string
	Name           *string
}

type UpdateChatInput struct {
	Name     *string
	IsActive *bool
}

type UpdateChatArgs struct {
	ID    graphql.ID
	Input UpdateChatInput
}

type SendMessageInput struct {
	ChatID    graphql.ID
	Content   *string
	Type      *string
	FileURL   *string
	ReplyToID *graphql.ID
}

func (in CreateChatInput) toDomain() chatmodel.Input {
	out := chatmodel.Input{
		ParticipantIDs: graph.IDs(in.ParticipantIDs),
		Type:           chatmodel.Type(in.Type),
	}
	if in.Name != nil {
		out.Name = *in.Name
	}
	return out
}

func (in SendMessageInput) toDomain() chatmodel.MessageInput {
	out := chatmodel.MessageInput{ChatID: string(in.ChatID), Type: chatmodel.MessageText}
	if in.Content != nil {
		out.Content = *in.Content
	}
	if in.Type != nil {
		out.Type = chatmodel.MessageType(*in.Type)
	}
	if in.FileURL != nil {
		out.FileURL = *in.FileURL
	}
	if in.ReplyToID != nil {
		out.ReplyToID = string(*in.ReplyToID)
	}
	return out
}

// UnreadCountResolver resolves ChatUnreadCount.
type UnreadCountResolver struct {
	chat  *graph.ChatResolver
	count int
}

func (r *UnreadCountResolver) Chat() *graph.ChatResolver { return r.chat }

func (r *UnreadCountResolver) Count() int32 { return int32(r.count) }
