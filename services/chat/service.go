package chat

import (
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/services/common/service"
)

// New builds the chat service on top of the shared service shell.
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
	return base, resolver, nil
}
