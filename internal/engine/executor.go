package engine

import (
	"context"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// ExecutionProvider реально выполняет способность: бэкенд воркфлоу или песочница.
// Должен завершаться при отмене ctx.
type ExecutionProvider interface {
	Execute(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error)
}

// ExecutionFunc позволяет передать функцию как ExecutionProvider.
type ExecutionFunc func(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error)

func (f ExecutionFunc) Execute(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error) {
	return f(ctx, req, progress)
}
