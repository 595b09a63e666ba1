package auth

import (
	"context"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/principal"
)

func (r *Resolver) Me(ctx context.Context) (*graph.UserResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	u, err := r.stores.Users.GetUser(ctx, p.ID)
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	return r.models.User(u), nil
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*graph.UserResolver, error) {
	u, err := r.stores.Users.GetUser(ctx, string(args.ID))
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	return r.models.User(u), nil
}

func (r *Resolver) UserByUsername(ctx context.Context, args struct{ Username string }) (*graph.UserResolver, error) {
	u, err := r.stores.Users.GetUserByUsername(ctx, strings.TrimSpace(args.Username))
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	return r.models.User(u), nil
}

// SearchUsers matches username or full name, case-insensitively.
func (r *Resolver) SearchUsers(ctx context.Context, args SearchArgs) ([]*graph.UserResolver, error) {
	q := strings.TrimSpace(args.Query)
	if q == "" {
		return []*graph.UserResolver{}, nil
	}
	users, err := r.stores.Users.SearchUsers(ctx, q, args.Page())
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	return r.models.Users(users), nil
}
