package chat

import (
	"context"

	chatmodel "github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
)

func (r *Resolver) MessageAdded(ctx context.Context, args ChatArgs) (<-chan *graph.MessageResolver, error) {
	return r.watchMessages(ctx, string(args.ChatID), pubsub.MessageAdded)
}

func (r *Resolver) MessageUpdated(ctx context.Context, args ChatArgs) (<-chan *graph.MessageResolver, error) {
	return r.watchMessages(ctx, string(args.ChatID), pubsub.MessageUpdated)
}

// ChatUpdated streams changes of a chat while the caller is a participant.
func (r *Resolver) ChatUpdated(ctx context.Context, args ChatArgs) (<-chan *graph.ChatResolver, error) {
	p, sub, err := r.subscribe(ctx, string(args.ChatID), pubsub.ChatUpdated)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(_ context.Context, c chatmodel.Chat) (*graph.ChatResolver, bool) {
		return r.models.Chat(c), chatmodel.IsParticipant(c, p.ID)
	})), nil
}

// watchMessages streams a chat's message events. Membership is rechecked on
// delivery so that leaving a chat ends the feed.
func (r *Resolver) watchMessages(ctx context.Context, chatID string, topic func(string) string) (<-chan *graph.MessageResolver, error) {
	p, sub, err := r.subscribe(ctx, chatID, topic)
	if err != nil {
		return nil, err
	}
	return graph.Stream(ctx, r.logger, sub, graph.Decode(r.logger, func(ctx context.Context, msg chatmodel.Message) (*graph.MessageResolver, bool) {
		if _, err := r.memberChat(ctx, p.ID, msg.ChatID); err != nil {
			return nil, false
		}
		return r.models.Message(msg), true
	})), nil
}

func (r *Resolver) subscribe(ctx context.Context, chatID string, topic func(string) string) (*principal.Principal, *pubsub.Subscription, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := r.memberChat(ctx, p.ID, chatID); err != nil {
		return nil, nil, err
	}
	sub, err := r.registry.Subscribe(ctx, topic(chatID))
	if err != nil {
		return nil, nil, errors.Internal("subscribe", err)
	}
	return p, sub, nil
}
