// Package dispatchtx defines the transactional storage operations shared by
// the state machine, the assignment engine and the timeout scheduler.
package dispatchtx

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
)

// Repository is the set of operations available inside one storage
// transaction. Row locks taken by the *ForUpdate methods are held until the
// transaction commits or rolls back, which serializes writers per order.
type Repository interface {
	// GetOrderForUpdate loads an order and locks its row; nil if absent.
	GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	// UpdateOrderStatus applies from->to; it fails if the stored status no
	// longer matches from.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) error
	SetOrderCourier(ctx context.Context, orderID, courierID string) error
	AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error

	// ActiveAssignmentForUpdate returns the order's single non-terminal
	// assignment, locked; nil if the order has none.
	ActiveAssignmentForUpdate(ctx context.Context, orderID string) (*domain.Assignment, error)
	AssignmentForUpdate(ctx context.Context, assignmentID string) (*domain.Assignment, error)
	InsertAssignment(ctx context.Context, a *domain.Assignment) error
	// UpdateAssignmentState applies from->to and reports whether the row was
	// still in from (compare-and-swap on the state column).
	UpdateAssignmentState(ctx context.Context, assignmentID string, from, to domain.AssignmentState) (bool, error)
	SetAssignmentAccepted(ctx context.Context, assignmentID string, at time.Time) error

	// TriedCourierIDs lists couriers that already hold an assignment row for
	// the order, used to build redispatch exclusion lists.
	TriedCourierIDs(ctx context.Context, orderID string) ([]string, error)
	CourierHasActiveAssignment(ctx context.Context, courierID string) (bool, error)
	// FirstAssignedAt is the timestamp of the order's earliest assignment,
	// nil if the order was never dispatched.
	FirstAssignedAt(ctx context.Context, orderID string) (*time.Time, error)
}
