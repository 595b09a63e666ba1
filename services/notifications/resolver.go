// Package notifications serves a user's notification inbox.
package notifications

import (
	"context"
	_ "embed"
	stderrors "errors"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/services/common/service"
)

const (
	ServiceName = "notifications"
	Version     = "1.0.0"
	DefaultPort = 4004
)

//go:embed schema.graphql
var Schema string

// Source is the notifications schema fragment.
func Source() graph.Source {
	return graph.Source{Name: "notifications.graphql", SDL: Schema}
}

// QueryResolver lists the notification queries.
type QueryResolver interface {
	MyNotifications(ctx context.Context, args ListArgs) ([]*graph.NotificationResolver, error)
	UnreadCount(ctx context.Context) (int32, error)
}

// MutationResolver lists the notification mutations.
type MutationResolver interface {
	MarkAsRead(ctx context.Context, args IDArgs) (*graph.NotificationResolver, error)
	MarkAllAsRead(ctx context.Context) (bool, error)
	DeleteNotification(ctx context.Context, args IDArgs) (bool, error)
	DeleteAllNotifications(ctx context.Context) (bool, error)
}

// SubscriptionResolver lists the notification subscriptions.
type SubscriptionResolver interface {
	NotificationAdded(ctx context.Context) (<-chan *graph.NotificationResolver, error)
	NotificationUpdated(ctx context.Context) (<-chan *graph.NotificationResolver, error)
	NotificationDeleted(ctx context.Context) (<-chan graphql.ID, error)
}

var (
	_ QueryResolver        = (*Resolver)(nil)
	_ MutationResolver     = (*Resolver)(nil)
	_ SubscriptionResolver = (*Resolver)(nil)
)

// Resolver implements the notification root fields. Every operation is
// scoped to the caller's own inbox.
type Resolver struct {
	models    *graph.Models
	store     storage.NotificationStore
	publisher pubsub.Publisher
	registry  pubsub.Subscriber
	logger    *logging.Logger
	now       func() time.Time
}

// NewResolver builds the notifications resolver over deps.
func NewResolver(deps *service.Deps) *Resolver {
	return &Resolver{
		models:    deps.Models,
		store:     deps.Stores.Notifications,
		publisher: deps.Registry,
		registry:  deps.Registry,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type IDArgs struct {
	ID graphql.ID
}

// NotificationFilter narrows myNotifications.
type NotificationFilter struct {
	Type     *string
	IsRead   *bool
	FromDate *graphql.Time
	ToDate   *graphql.Time
}

type ListArgs struct {
	graph.PageArgs
	Filter *NotificationFilter
}

func (f *NotificationFilter) toDomain() notification.Filter {
	var out notification.Filter
	if f == nil {
		return out
	}
	if f.Type != nil {
		t := notification.Type(*f.Type)
		out.Type = &t
	}
	out.IsRead = f.IsRead
	if f.FromDate != nil {
		from := f.FromDate.Time
		out.FromDate = &from
	}
	if f.ToDate != nil {
		to := f.ToDate.Time
		out.ToDate = &to
	}
	return out
}

// =============================================================================
// Queries
// =============================================================================

// MyNotifications lists the caller's notifications, newest first.
func (r *Resolver) MyNotifications(ctx context.Context, args ListArgs) ([]*graph.NotificationResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter := args.Filter.toDomain()
	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return nil, errors.Validation("fromDate must not be after toDate").WithDetails("field", "filter")
	}
	list, err := r.store.ListNotifications(ctx, p.ID, filter, args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "Notification")
	}
	return r.models.Notifications(list), nil
}

func (r *Resolver) UnreadCount(ctx context.Context) (int32, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return 0, err
	}
	n, err := r.store.CountUnread(ctx, p.ID)
	if err != nil {
		return 0, graph.StoreError(err, "Notification")
	}
	return int32(n), nil
}

// =============================================================================
// Mutations
// =============================================================================

func (r *Resolver) MarkAsRead(ctx context.Context, args IDArgs) (*graph.NotificationResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	n, err := r.owned(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}

	read, intent := notification.MarkRead(n, r.now())
	if intent == domain.NoChange {
		return r.models.Notification(n), nil
	}
	if read, err = r.store.UpdateNotification(ctx, read); err != nil {
		return nil, graph.StoreError(err, "Notification")
	}
	r.publish(ctx, pubsub.NotificationUpdated(p.ID), read)
	return r.models.Notification(read), nil
}

// MarkAllAsRead reports whether any notification changed. Only the changed
// ones are published.
func (r *Resolver) MarkAllAsRead(ctx context.Context) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	changed, err := r.store.MarkAllRead(ctx, p.ID, r.now())
	if err != nil {
		return false, graph.StoreError(err, "Notification")
	}
	for _, n := range changed {
		r.publish(ctx, pubsub.NotificationUpdated(p.ID), n)
	}
	return len(changed) > 0, nil
}

func (r *Resolver) DeleteNotification(ctx context.Context, args IDArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	n, err := r.owned(ctx, p.ID, string(args.ID))
	if err != nil {
		return false, err
	}
	err = r.store.DeleteNotification(ctx, n.ID)
	if stderrors.Is(err, storage.ErrNotFound) {
		// removed concurrently
		return true, nil
	}
	if err != nil {
		return false, graph.StoreError(err, "Notification")
	}
	r.publish(ctx, pubsub.NotificationDeleted(p.ID), n.ID)
	return true, nil
}

// DeleteAllNotifications reports whether anything was removed.
func (r *Resolver) DeleteAllNotifications(ctx context.Context) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	ids, err := r.store.DeleteAllNotifications(ctx, p.ID)
	if err != nil {
		return false, graph.StoreError(err, "Notification")
	}
	for _, id := range ids {
		r.publish(ctx, pubsub.NotificationDeleted(p.ID), id)
	}
	return len(ids) > 0, nil
}

// owned loads a notification addressed to userID. Other users'
// notifications are reported as missing.
func (r *Resolver) owned(ctx context.Context, userID, id string) (notification.Notification, error) {
	n, err := r.store.GetNotification(ctx, id)
	if err != nil {
		return notification.Notification{}, graph.StoreError(err, "Notification")
	}
	if !notification.BelongsTo(n, userID) {
		return notification.Notification{}, errors.NotFound("Notification")
	}
	return n, nil
}

func (r *Resolver) publish(ctx context.Context, topic string, payload interface{}) {
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("topic", topic).Warn("Failed to publish notification event")
	}
}

// =============================================================================
// Subscriptions
// =============================================================================

func (r *Resolver) NotificationAdded(ctx context.Context) (<-chan *graph.NotificationResolver, error) {
	return r.watch(ctx, pubsub.NotificationAdded)
}

func (r *Resolver) NotificationUpdated(ctx context.Context) (<-chan *graph.NotificationResolver, error) {
	return r.watch(ctx, pubsub.NotificationUpdated)
}

func (r *Resolver) NotificationDeleted(ctx context.Context) (<-chan graphql.ID, error) {
	sub, err := r.subscribe(ctx, pubsub.NotificationDeleted)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, id string) (graphql.ID, bool) {
		return graphql.ID(id), true
	})), nil
}

func (r *Resolver) watch(ctx context.Context, topic func(string) string) (<-chan *graph.NotificationResolver, error) {
	sub, err := r.subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, n notification.Notification) (*graph.NotificationResolver, bool) {
		return r.models.Notification(n), true
	})), nil
}

// subscribe opens the caller's own topic; there is no way to name another
// recipient.
func (r *Resolver) subscribe(ctx context.Context, topic func(string) string) (*pubsub.Subscription, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := r.registry.Subscribe(ctx, topic(p.ID))
	if err != nil {
		return nil, errors.Internal("subscribe", err)
	}
	return sub, nil
}
