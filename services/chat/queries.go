package chat

import (
	"context"

	"github.com/threadsclone/backend/internal/domain"
	chatmodel "github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
)

// MyChats lists the caller's chats, most recently active first.
func (r *Resolver) MyChats(ctx context.Context, args graph.PageArgs) ([]*graph.ChatResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	chats, err := r.stores.Chats.ListChats(ctx, p.ID, args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "Chat")
	}
	return r.models.Chats(chats), nil
}

func (r *Resolver) Chat(ctx context.Context, args IDArgs) (*graph.ChatResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.memberChat(ctx, p.ID, string(args.ID))
	if err != nil {
		return nil, err
	}
	return r.models.Chat(c), nil
}

// Messages returns the requested window in chronological order.
func (r *Resolver) Messages(ctx context.Context, args MessagesArgs) ([]*graph.MessageResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	c, err := r.memberChat(ctx, p.ID, string(args.ChatID))
	if err != nil {
		return nil, err
	}
	page := domain.NewPage(args.Limit, args.Offset)
	if args.Limit == nil {
		page.Limit = 50
	}
	msgs, err := r.stores.Messages.ListMessages(ctx, c.ID, page)
	if err != nil {
		return nil, graph.StoreError(err, "Message")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return r.models.Messages(msgs), nil
}

// UnreadCounts reports the caller's unread counter for each of their chats.
func (r *Resolver) UnreadCounts(ctx context.Context) ([]*UnreadCountResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	out := []*UnreadCountResolver{}
	page := domain.Page{Limit: domain.MaxPageSize}
	for {
		chats, err := r.stores.Chats.ListChats(ctx, p.ID, page)
		if err != nil {
			return nil, graph.StoreError(err, "Chat")
		}
		for _, c := range chats {
			out = append(out, &UnreadCountResolver{
				chat:  r.models.Chat(c),
				count: chatmodel.UnreadFor(c, p.ID),
			})
		}
		if len(chats) < page.Limit {
			return out, nil
		}
		page.Offset += page.Limit
	}
}

// memberChat loads a chat the user participates in. Chats the user is not
// part of are reported as missing.
func (r *Resolver) memberChat(ctx context.Context, userID, id string) (chatmodel.Chat, error) {
	c, err := r.stores.Chats.GetChat(ctx, id)
	if err != nil {
		return chatmodel.Chat{}, graph.StoreError(err, "Chat")
	}
	if !chatmodel.IsParticipant(c, userID) {
		return chatmodel.Chat{}, errors.NotFound("Chat")
	}
	return c, nil
}
