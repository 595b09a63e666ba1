package gateway

import (
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"

	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/services/auth"
	"github.com/threadsclone/backend/services/chat"
	"github.com/threadsclone/backend/services/common/service"
	"github.com/threadsclone/backend/services/notifications"
	"github.com/threadsclone/backend/services/posts"
)

const (
	ServiceName = "gateway"
	Version     = "1.0.0"
	DefaultPort = 4000
)

type (
	AuthResolver          = auth.Resolver
	PostsResolver         = posts.Resolver
	ChatResolver          = chat.Resolver
	NotificationsResolver = notifications.Resolver
)

// Root resolves the merged schema. Root field names are unique across the
// services, so every method is promoted unambiguously.
type Root struct {
	*AuthResolver
	*PostsResolver
	*ChatResolver
	*NotificationsResolver
}

// NewRoot builds every service resolver over the same deps, so they share
// one registry and subscriptions see events from any service.
func NewRoot(deps *service.Deps) *Root {
	return &Root{
		AuthResolver:          auth.NewResolver(deps),
		PostsResolver:         posts.NewResolver(deps),
		ChatResolver:          chat.NewResolver(deps),
		NotificationsResolver: notifications.NewResolver(deps),
	}
}

// Sources lists the schema fragments of all four services.
func Sources() []graph.Source {
	return []graph.Source{auth.Source(), posts.Source(), chat.Source(), notifications.Source()}
}

// New builds the gateway: the merged /graphql endpoint, /playground, /status
// and the prefix proxy, all behind the standard middleware chain.
func New(deps *service.Deps, upstreams []config.Upstream) (*service.BaseService, *Root, error) {
	root := NewRoot(deps)
	base, err := service.NewBase(service.BaseConfig{
		Name:    ServiceName,
		Version: Version,
		Deps:    deps,
		Root:    root,
		Sources: Sources(),
	})
	if err != nil {
		return nil, nil, err
	}

	proxy, err := NewProxy(upstreams, deps.Logger)
	if err != nil {
		return nil, nil, err
	}

	r := base.Router()
	r.HandleFunc("/status", StatusHandler(NewProber(proxy.Routes()))).Methods(http.MethodGet)
	if deps.Config == nil || !deps.Config.IsProduction() {
		r.Handle("/playground", playground.Handler("Threads Clone", "/graphql")).Methods(http.MethodGet)
	}
	proxy.Register(r)

	maintenance, err := auth.NewMaintenance(deps.Stores.Users, deps.Logger)
	if err != nil {
		return nil, nil, err
	}
	base.AddComponent(root.AuthResolver.Components()...)
	base.AddComponent(maintenance.Component())
	return base, root, nil
}
