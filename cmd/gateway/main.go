// Command gateway fronts the four services: it forwards /api/<service>
// prefixes and serves the merged GraphQL schema with /playground and
// /status.
package main

import (
	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/gateway"
	"github.com/threadsclone/backend/services/common/service"
)

func main() {
	service.Main(gateway.ServiceName, gateway.DefaultPort, func(deps *service.Deps) (*service.BaseService, error) {
		upstreams := config.LoadServicesConfigOrDefault(deps.Config.ServicesConfigPath)
		base, _, err := gateway.New(deps, upstreams.Services)
		return base, err
	})
}
