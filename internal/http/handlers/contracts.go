package handlers

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/orderstate"
	"service-dispatch/internal/service/presence"
	"service-dispatch/internal/service/settlement"
)

type orderUsecase interface {
	Register(ctx context.Context, o *domain.Order) (*domain.Order, error)
	RequestTransition(ctx context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, []domain.OrderStatusHistory, error)
}

// NewOrderUsecase wires an orderstate.Service into an orderUsecase.
func NewOrderUsecase(svc *orderstate.Service) orderUsecase {
	return svc
}

type assignmentUsecase interface {
	Dispatch(ctx context.Context, orderID string, exclude []string) (*domain.Assignment, error)
	Accept(ctx context.Context, assignmentID, courierID string) (*domain.Assignment, error)
	Reject(ctx context.Context, assignmentID, courierID, reason string) error
}

// NewAssignmentUsecase wires a dispatch.Engine into an assignmentUsecase.
func NewAssignmentUsecase(e *dispatch.Engine) assignmentUsecase {
	return e
}

type presenceUsecase interface {
	Heartbeat(ctx context.Context, loc domain.CourierLocation) error
	Offline(ctx context.Context, courierID string) error
}

// NewPresenceUsecase wires a presence.Service into a presenceUsecase.
func NewPresenceUsecase(svc *presence.Service) presenceUsecase {
	return svc
}

type ledgerUsecase interface {
	Balance(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error)
	Transactions(ctx context.Context, owner domain.OwnerRef, limit int) ([]domain.Transaction, error)
	Withdraw(ctx context.Context, owner domain.OwnerRef, amount int64, currency string) (*domain.Transaction, error)
}

// NewLedgerUsecase wires a settlement.Ledger into a ledgerUsecase.
func NewLedgerUsecase(l *settlement.Ledger) ledgerUsecase {
	return l
}
