package timeout

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

type timeoutRepository interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
	DueTimeouts(ctx context.Context, now time.Time, limit int) ([]string, error)
	StaleReadyOrders(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	MarkNotAcceptedFlagged(ctx context.Context, orderID string, at time.Time) (bool, error)
	RedispatchableOrders(ctx context.Context, limit int) ([]string, error)
}

type redispatcher interface {
	Dispatch(ctx context.Context, orderID string, exclude []string) (*domain.Assignment, error)
}

type signalPublisher interface {
	PublishAssignmentExpired(ctx context.Context, e domain.AssignmentExpiredEvent) error
	PublishManualRequired(ctx context.Context, e domain.ManualAssignmentRequiredEvent) error
	PublishOrderNotAccepted(ctx context.Context, e domain.OrderNotAcceptedEvent) error
}

type counter interface {
	Inc()
}
