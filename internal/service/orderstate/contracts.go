package orderstate

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

type stateRepository interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error)
}

type eventPublisher interface {
	PublishStatusChanged(ctx context.Context, e domain.StatusChangedEvent) error
}
