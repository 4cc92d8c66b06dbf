// Package ledgertx defines the transactional storage operations of the
// balance ledger.
package ledgertx

import (
	"context"

	"service-dispatch/internal/domain"
)

// Repository is the set of ledger operations available inside one storage
// transaction. A balance mutation and its accompanying transaction record
// always share a transaction: both succeed or both roll back.
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// MarkSettled records the (order, transition) settlement key and reports
	// whether it was newly inserted. A false return means this transition was
	// already settled and the caller must not apply deltas again.
	MarkSettled(ctx context.Context, orderID string, transition domain.OrderStatus) (bool, error)

	// BalanceForUpdate loads and locks the owner's balance row, creating a
	// zero balance if the owner has none yet.
	BalanceForUpdate(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error)

	// ApplyDelta adds delta to the selected field; the total follows. The
	// store enforces that no balance component goes negative.
	ApplyDelta(ctx context.Context, owner domain.OwnerRef, field domain.BalanceField, delta int64) error

	InsertTransaction(ctx context.Context, t *domain.Transaction) error
}
