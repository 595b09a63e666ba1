// Command chat-service runs the chat GraphQL service.
package main

import (
	"github.com/threadsclone/backend/services/chat"
	"github.com/threadsclone/backend/services/common/service"
)

func main() {
	service.Main(chat.ServiceName, chat.DefaultPort, func(deps *service.Deps) (*service.BaseService, error) {
		base, _, err := chat.New(deps)
		return base, err
	})
}
