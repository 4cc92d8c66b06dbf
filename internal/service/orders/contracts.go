package orders

import (
	"context"

	"service-dispatch/internal/domain"
)

// StatePort abstracts the order lifecycle operations the Processor drives.
type StatePort interface {
	Register(ctx context.Context, o *domain.Order) (*domain.Order, error)
	RequestTransition(ctx context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error)
}

// DispatchPort abstracts the assignment engine.
type DispatchPort interface {
	Dispatch(ctx context.Context, orderID string, exclude []string) (*domain.Assignment, error)
}

// SettlementPort abstracts the money side of a status transition.
type SettlementPort interface {
	HandleStatusChanged(ctx context.Context, e domain.StatusChangedEvent) error
}
