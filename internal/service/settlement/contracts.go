package settlement

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/ledgertx"
)

type ledgerRepository interface {
	WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) error
	GetBalance(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error)
	ListTransactions(ctx context.Context, owner domain.OwnerRef, limit int) ([]domain.Transaction, error)
}

type counter interface {
	Inc()
}
