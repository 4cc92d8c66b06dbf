package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/ledgertx"
)

const defaultTransactionsLimit = 50

// Ledger is the read and payout surface over balances.
type Ledger struct {
	repo             ledgerRepository
	operationTimeout time.Duration
	logger           logx.Logger
	newID            func() string
	now              func() time.Time
}

// NewLedger - creates a new Ledger service.
func NewLedger(repo ledgerRepository, timeout time.Duration, logger logx.Logger) *Ledger {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Ledger{
		repo:             repo,
		operationTimeout: timeout,
		logger:           logger,
		newID:            uuid.NewString,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Balance returns the owner's balance; owners never seen before read as zero.
func (l *Ledger) Balance(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: bad balance owner", apperr.Invalid)
	}

	ctx, cancel := context.WithTimeout(ctx, l.operationTimeout)
	defer cancel()

	return l.repo.GetBalance(ctx, owner)
}

// Transactions returns the owner's ledger trail, newest first.
func (l *Ledger) Transactions(ctx context.Context, owner domain.OwnerRef, limit int) ([]domain.Transaction, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: bad balance owner", apperr.Invalid)
	}
	if limit <= 0 || limit > 500 {
		limit = defaultTransactionsLimit
	}

	ctx, cancel := context.WithTimeout(ctx, l.operationTimeout)
	defer cancel()

	return l.repo.ListTransactions(ctx, owner, limit)
}

// Withdraw moves funds out of the owner's available balance. Withdrawing
// more than is available is a conflict, not an overdraft.
func (l *Ledger) Withdraw(ctx context.Context, owner domain.OwnerRef, amount int64, currency string) (*domain.Transaction, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: bad balance owner", apperr.Invalid)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", apperr.Invalid)
	}
	if currency == "" {
		currency = "USD"
	}

	ctx, cancel := context.WithTimeout(ctx, l.operationTimeout)
	defer cancel()

	t := &domain.Transaction{
		ID:        l.newID(),
		Owner:     owner,
		Type:      domain.TxWithdrawal,
		Amount:    amount,
		Currency:  currency,
		Status:    "completed",
		CreatedAt: l.now(),
	}

	err := l.repo.WithTx(ctx, func(tx ledgertx.Repository) error {
		b, err := tx.BalanceForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if b.Available < amount {
			return fmt.Errorf("%w: available %d is short of %d", apperr.Conflict, b.Available, amount)
		}
		if err := tx.ApplyDelta(ctx, owner, domain.FieldAvailable, -amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("withdrawal completed",
		logx.String("event", "withdrawal_completed"),
		logx.String("owner_kind", string(owner.Kind)),
		logx.String("owner_id", owner.ID),
		logx.Int64("amount", amount),
	)
	return t, nil
}
