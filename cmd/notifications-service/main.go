// Command notifications-service runs the notifications GraphQL service.
package main

import (
	"github.com/threadsclone/backend/services/notifications"
	"github.com/threadsclone/backend/services/common/service"
)

func main() {
	service.Main(notifications.ServiceName, notifications.DefaultPort, func(deps *service.Deps) (*service.BaseService, error) {
		base, _, err := notifications.New(deps)
		return base, err
	})
}
