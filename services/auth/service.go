package auth

import (
	"context"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/services/common/service"
)

// New builds the auth service: its schema, rate limiters and maintenance
// jobs on top of the shared service shell.
func New(deps *service.Deps) (*service.BaseService, *Resolver, error) {
	resolver := NewResolver(deps)
	base, err := service.NewBase(service.BaseConfig{
		Name:    ServiceName,
		Version: Version,
		Deps:    deps,
		Root:    resolver,
		Sources: []graph.Source{Source()},
	})
	if err != nil {
		return nil, nil, err
	}

	maintenance, err := NewMaintenance(deps.Stores.Users, deps.Logger)
	if err != nil {
		return nil, nil, err
	}
	base.AddComponent(resolver.Components()...)
	base.AddComponent(maintenance.Component())
	return base, resolver, nil
}

// Components runs the operation rate limiters.
func (r *Resolver) Components() []runtime.Component {
	out := make([]runtime.Component, 0, 2)
	for _, l := range r.Limiters() {
		limiter := l
		out = append(out, runtime.Component{
			Name:  "auth-ratelimit-" + limiter.Tier().Name,
			Start: func(context.Context) error { limiter.Start(); return nil },
			Stop:  func(context.Context) error { limiter.Stop(); return nil },
		})
	}
	return out
}
