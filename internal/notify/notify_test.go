package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
)

func setup(t *testing.T) (*Notifier, *storage.Memory, *pubsub.Registry) {
	t.Helper()
	store := storage.NewMemory()
	reg := pubsub.NewRegistry(pubsub.Options{Logger: logging.NewDiscard()})
	require.NoError(t, reg.Start(context.Background()))
	t.Cleanup(func() { _ = reg.Stop() })
	return New(store, reg, logging.NewDiscard(), metrics.New("test")), store, reg
}

func receive(t *testing.T, sub *pubsub.Subscription) pubsub.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return pubsub.Event{}
	}
}

func TestCreate_PersistsAndPublishes(t *testing.T) {
	n, store, reg := setup(t)
	ctx := context.Background()

	sub, err := reg.Subscribe(ctx, pubsub.NotificationAdded("bob"))
	require.NoError(t, err)
	defer sub.Cancel()

	created, err := n.Create(ctx, notification.Notification{
		RecipientID: "bob",
		SenderID:    "alice",
		Type:        notification.Like,
		PostID:      "p1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsRead)

	var got notification.Notification
	require.NoError(t, receive(t, sub).Decode(&got))
	assert.Equal(t, created.ID, got.ID)

	count, err := store.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreate_RejectsMissingEntity(t *testing.T) {
	n, _, _ := setup(t)
	_, err := n.Create(context.Background(), notification.Notification{
		RecipientID: "bob",
		SenderID:    "alice",
		Type:        notification.Comment,
	})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestNotify_SkipsSelf(t *testing.T) {
	n, store, _ := setup(t)
	ctx := context.Background()

	n.Notify(ctx, notification.Notification{RecipientID: "alice", SenderID: "alice", Type: notification.Like, PostID: "p1"})
	n.NotifyMany(ctx, []string{"alice", "bob"}, notification.Notification{SenderID: "alice", Type: notification.Mention, PostID: "p1"})

	mine, err := store.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, mine)

	theirs, err := store.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, theirs)
}
