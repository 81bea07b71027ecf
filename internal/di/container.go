package di

import (
	"go.uber.org/dig"
)

// NewContainer 创建并装配依赖注入容器
func NewContainer() (*dig.Container, error) {
	container := dig.New()
	if err := RegisterProviders(container); err != nil {
		return nil, err
	}
	return container, nil
}
