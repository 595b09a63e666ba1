// Package graph executes the GraphQL schemas of the services over HTTP and
// WebSocket, and resolves the object types they share.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/threadsclone/backend/internal/logging"
)

// BaseSchema declares the shared object types and empty root types.
//
//go:embed base.graphql
var BaseSchema string

// MaxDepth bounds query nesting.
const MaxDepth = 12

// Source is one named SDL document.
type Source struct {
	Name string
	SDL  string
}

// Merge validates the base schema together with the given service
// documents and returns one SDL with every extension folded into its type.
func Merge(sources ...Source) (string, error) {
	inputs := make([]*ast.Source, 0, len(sources)+1)
	inputs = append(inputs, &ast.Source{Name: "base.graphql", Input: BaseSchema})
	for _, s := range sources {
		inputs = append(inputs, &ast.Source{Name: s.Name, Input: s.SDL})
	}

	schema, err := gqlparser.LoadSchema(inputs...)
	if err != nil {
		return "", fmt.Errorf("merge schema: %w", err)
	}

	var body strings.Builder
	formatter.NewFormatter(&body).FormatSchema(schema)
	out := body.String()
	if strings.HasPrefix(strings.TrimSpace(out), "schema") {
		return out, nil
	}

	var b strings.Builder
	b.WriteString("schema {\n")
	if schema.Query != nil {
		b.WriteString("  query: " + schema.Query.Name + "\n")
	}
	if schema.Mutation != nil {
		b.WriteString("  mutation: " + schema.Mutation.Name + "\n")
	}
	if schema.Subscription != nil {
		b.WriteString("  subscription: " + schema.Subscription.Name + "\n")
	}
	b.WriteString("}\n\n")
	b.WriteString(out)
	return b.String(), nil
}

// Parse merges sources and binds the result to root.
func Parse(root interface{}, logger *logging.Logger, sources ...Source) (*graphql.Schema, error) {
	sdl, err := Merge(sources...)
	if err != nil {
		return nil, err
	}
	schema, err := graphql.ParseSchema(sdl, root,
		graphql.UseFieldResolvers(),
		graphql.MaxDepth(MaxDepth),
		graphql.Logger(panicLogger{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}

// panicLogger records resolver panics. The engine turns them into field
// errors, which are masked before they reach the client.
type panicLogger struct {
	logger *logging.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.logger.WithContext(ctx).
		WithField("stack", string(debug.Stack())).
		Errorf("graphql resolver panic: %v", value)
}
