package chat

import (
	"context"
	stderrors "errors"

	"github.com/threadsclone/backend/internal/domain"
	chatmodel "github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
)

// CreateChat opens a chat with the caller as creator. Asking for a direct
// chat that already exists returns the existing one.
func (r *Resolver) CreateChat(ctx context.Context, args struct{ Input CreateChatInput }) (*graph.ChatResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	in := args.Input.toDomain()
	if err := chatmodel.ValidateInput(p.ID, in); err != nil {
		return nil, err
	}
	participants := chatmodel.ParticipantSet(p.ID, in.ParticipantIDs)
	for _, id := range participants[1:] {
		if _, err := r.stores.Users.GetUser(ctx, id); err != nil {
			return nil, graph.StoreError(err, "User")
		}
	}

	if in.Type == chatmodel.Direct {
		r.directMu.Lock()
		defer r.directMu.Unlock()

		existing, err := r.stores.Chats.FindDirectChat(ctx, participants[0], participants[1])
		if err == nil {
			return r.models.Chat(existing), nil
		}
		if !stderrors.Is(err, storage.ErrNotFound) {
			return nil, graph.StoreError(err, "Chat")
		}
	}

	created, err := r.stores.Chats.CreateChat(ctx, chatmodel.New(p.ID, in, r.now()))
	if err != nil {
		return nil, graph.StoreError(err, "Chat")
	}
	r.logger.WithContext(ctx).WithField("chat_id", created.ID).WithField("type", created.Type).Debug("Chat created")
	return r.models.Chat(created), nil
}

// SendMessage appends a message, bumps the other participants' unread
// counters and notifies them.
func (r *Resolver) SendMessage(ctx context.Context, args struct{ Input SendMessageInput }) (*graph.MessageResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	in := args.Input.toDomain()
	if err := chatmodel.ValidateMessage(in); err != nil {
		return nil, err
	}
	c, err := r.memberChat(ctx, p.ID, in.ChatID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, errors.Forbidden("Chat is not active")
	}
	if in.ReplyToID != "" {
		replyTo, err := r.stores.Messages.GetMessage(ctx, in.ReplyToID)
		if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return nil, graph.StoreError(err, "Message")
		}
		if err != nil || replyTo.ChatID != c.ID {
			return nil, errors.Validation("Reply target is not in this chat").WithDetails("field", "replyToId")
		}
	}

	now := r.now()
	msg, err := r.stores.Messages.CreateMessage(ctx, chatmodel.NewMessage(p.ID, in, now))
	if err != nil {
		return nil, graph.StoreError(err, "Message")
	}
	if err := r.stores.Chats.IncrementUnread(ctx, c.ID, p.ID); err != nil {
		return nil, graph.StoreError(err, "Chat")
	}
	recorded, _ := chatmodel.RecordMessage(c, msg, now)
	if c, err = r.stores.Chats.UpdateChat(ctx, recorded); err != nil {
		return nil, graph.StoreError(err, "Chat")
	}

	r.publish(ctx, pubsub.MessageAdded(c.ID), msg)
	r.publish(ctx, pubsub.ChatUpdated(c.ID), c)
	r.notifier.NotifyMany(ctx, c.Participants, notification.Notification{
		Type:      notification.Message,
		SenderID:  p.ID,
		ChatID:    c.ID,
		MessageID: msg.ID,
	})
	return r.models.Message(msg), nil
}

// UpdateChat renames a group chat or toggles whether it is active.
func (r *Resolver) UpdateChat(ctx context.Context, args UpdateChatArgs) (*graph.ChatResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.memberChat(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}

	updated, intent, err := chatmodel.ApplyUpdate(c, chatmodel.Update{
		Name:     args.Input.Name,
		IsActive: args.Input.IsActive,
	}, r.now())
	if err != nil {
		return nil, err
	}
	if intent == domain.NoChange {
		return r.models.Chat(c), nil
	}
	if updated, err = r.stores.Chats.UpdateChat(ctx, updated); err != nil {
		return nil, graph.StoreError(err, "Chat")
	}
	r.publish(ctx, pubsub.ChatUpdated(updated.ID), updated)
	return r.models.Chat(updated), nil
}

// MarkMessagesAsRead adds the caller's receipt to every message of the chat
// and clears their unread counter.
func (r *Resolver) MarkMessagesAsRead(ctx context.Context, args ChatArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	c, err := r.memberChat(ctx, p.ID, string(args.ChatID))
	if err != nil {
		return false, err
	}

	marked, err := r.stores.Messages.MarkChatRead(ctx, c.ID, p.ID, r.now())
	if err != nil {
		return false, graph.StoreError(err, "Message")
	}
	if _, intent := chatmodel.MarkRead(c, p.ID); intent == domain.NoChange && marked == 0 {
		return true, nil
	}
	if err := r.stores.Chats.ResetUnread(ctx, c.ID, p.ID); err != nil {
		return false, graph.StoreError(err, "Chat")
	}
	if c, err = r.stores.Chats.GetChat(ctx, c.ID); err != nil {
		return false, graph.StoreError(err, "Chat")
	}
	r.publish(ctx, pubsub.ChatUpdated(c.ID), c)
	return true, nil
}

// DeleteMessage soft-deletes one of the caller's own messages.
func (r *Resolver) DeleteMessage(ctx context.Context, args IDArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	msg, err := r.stores.Messages.GetMessage(ctx, string(args.ID))
	if err != nil {
		return false, graph.StoreError(err, "Message")
	}
	if _, err := r.memberChat(ctx, p.ID, msg.ChatID); err != nil {
		return false, errors.NotFound("Message")
	}
	if msg.SenderID != p.ID {
		return false, errors.Forbidden("Not authorized to delete this message")
	}

	deleted, intent := chatmodel.MarkMessageDeleted(msg, r.now())
	if intent == domain.NoChange {
		return true, nil
	}
	if deleted, err = r.stores.Messages.UpdateMessage(ctx, deleted); err != nil {
		return false, graph.StoreError(err, "Message")
	}
	r.publish(ctx, pubsub.MessageUpdated(deleted.ChatID), deleted)
	return true, nil
}

// LeaveChat removes the caller from a group chat.
func (r *Resolver) LeaveChat(ctx context.Context, args IDArgs) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	c, err := r.memberChat(ctx, p.ID, string(args.ID))
	if err != nil {
		return false, err
	}

	left, intent, err := chatmodel.Leave(c, p.ID, r.now())
	if err != nil {
		return false, err
	}
	if intent == domain.NoChange {
		return true, nil
	}
	if err := r.stores.Chats.RemoveParticipant(ctx, c.ID, p.ID); err != nil {
		return false, graph.StoreError(err, "Chat")
	}
	if left, err = r.stores.Chats.UpdateChat(ctx, left); err != nil {
		return false, graph.StoreError(err, "Chat")
	}
	r.publish(ctx, pubsub.ChatUpdated(left.ID), left)
	return true, nil
}

func (r *Resolver) publish(ctx context.Context, topic string, payload interface{}) {
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("topic", topic).Warn("Failed to publish chat event")
	}
}
