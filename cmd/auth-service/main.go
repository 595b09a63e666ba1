// Command auth-service runs the auth GraphQL service.
package main

import (
	"github.com/threadsclone/backend/services/auth"
	"github.com/threadsclone/backend/services/common/service"
)

func main() {
	service.Main(auth.ServiceName, auth.DefaultPort, func(deps *service.Deps) (*service.BaseService, error) {
		base, _, err := auth.New(deps)
		return base, err
	})
}
