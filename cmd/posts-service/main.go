// Command posts-service runs the posts GraphQL service.
package main

import (
	"github.com/threadsclone/backend/services/posts"
	"github.com/threadsclone/backend/services/common/service"
)

func main() {
	service.Main(posts.ServiceName, posts.DefaultPort, func(deps *service.Deps) (*service.BaseService, error) {
		base, _, err := posts.New(deps)
		return base, err
	})
}
