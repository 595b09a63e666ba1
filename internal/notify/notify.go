// Package notify persists notifications and publishes them to the
// recipient's live subscriptions.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
)

// Notifier is shared by every service that emits notifications.
type Notifier struct {
	store     storage.NotificationStore
	publisher pubsub.Publisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a Notifier. m may be nil.
func New(store storage.NotificationStore, publisher pubsub.Publisher, logger *logging.Logger, m *metrics.Metrics) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates, stores and publishes n on the recipient's
// NOTIFICATION_ADDED topic.
func (n *Notifier) Create(ctx context.Context, in notification.Notification) (notification.Notification, error) {
	if err := notification.Validate(in); err != nil {
		return notification.Notification{}, err
	}

	created, err := n.store.CreateNotification(ctx, notification.New(in, n.now()))
	if err != nil {
		return notification.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	if err := n.publisher.Publish(ctx, pubsub.NotificationAdded(created.RecipientID), created); err != nil {
		n.logger.WithContext(ctx).WithError(err).WithField("notification_id", created.ID).
			Warn("Failed to publish notification")
	}
	if n.metrics != nil {
		n.metrics.NotificationCreated(string(created.Type))
	}
	return created, nil
}

// Notify is the fire-and-forget form used as a side effect of other
// mutations. Self-notifications are skipped and failures are logged, never
// returned: the triggering mutation has already succeeded.
func (n *Notifier) Notify(ctx context.Context, in notification.Notification) {
	if in.Type != notification.System && !notification.ShouldNotify(in.SenderID, in.RecipientID) {
		return
	}
	if _, err := n.Create(ctx, in); err != nil {
		n.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"type":      in.Type,
			"recipient": in.RecipientID,
		}).Error("Failed to create notification")
	}
}

// NotifyMany sends the same notification to each recipient.
func (n *Notifier) NotifyMany(ctx context.Context, recipients []string, in notification.Notification) {
	for _, id := range recipients {
		in.RecipientID = id
		n.Notify(ctx, in)
	}
}
