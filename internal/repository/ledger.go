package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/ledgertx"
)

// LedgerRepo is the storage behind balances and the transaction trail.
type LedgerRepo struct {
	db *pgxpool.Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(db *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *LedgerRepo) WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = tx.Rollback(ctx)
			if err != nil {
				panic(err)
			}
			panic(p)
		}
	}()

	wrapped := &ledgerTx{tx: tx}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ledgerTx implements ledgertx.Repository inside one pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

var _ ledgertx.Repository = (*ledgerTx)(nil)

// GetOrder - read one order without locking it.
func (r *ledgerTx) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %q: %w", orderID, err)
	}
	return o, nil
}

// MarkSettled records the (order, transition) settlement key and reports
// whether it was newly inserted.
func (r *ledgerTx) MarkSettled(ctx context.Context, orderID string, transition domain.OrderStatus) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        INSERT INTO settlements (order_id, transition)
        VALUES ($1, $2)
        ON CONFLICT (order_id, transition) DO NOTHING
    `, orderID, string(transition))
	if err != nil {
		return false, fmt.Errorf("mark order %q settled at %q: %w", orderID, transition, err)
	}
	return ct.RowsAffected() > 0, nil
}

// BalanceForUpdate loads and locks the owner's balance row, creating a zero
// balance if the owner has none yet.
func (r *ledgerTx) BalanceForUpdate(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error) {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO balances (owner_kind, owner_id)
        VALUES ($1, $2)
        ON CONFLICT (owner_kind, owner_id) DO NOTHING
    `, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("ensure balance %s/%s: %w", owner.Kind, owner.ID, err)
	}

	b := domain.Balance{Owner: owner}
	err = r.tx.QueryRow(ctx, `
        SELECT available, pending, total, updated_at
        FROM balances
        WHERE owner_kind = $1 AND owner_id = $2
        FOR UPDATE
    `, string(owner.Kind), owner.ID).Scan(&b.Available, &b.Pending, &b.Total, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s for update: %w", owner.Kind, owner.ID, err)
	}
	return &b, nil
}

// ApplyDelta adds delta to the selected field; the total follows. Check
// constraints surface as apperr.Conflict so callers can tell insufficient
// funds from storage failures.
func (r *ledgerTx) ApplyDelta(ctx context.Context, owner domain.OwnerRef, field domain.BalanceField, delta int64) error {
	var query string
	switch field {
	case domain.FieldAvailable:
		query = `
            UPDATE balances
            SET available = available + $3, total = total + $3, updated_at = now()
            WHERE owner_kind = $1 AND owner_id = $2
        `
	case domain.FieldPending:
		query = `
            UPDATE balances
            SET pending = pending + $3, total = total + $3, updated_at = now()
            WHERE owner_kind = $1 AND owner_id = $2
        `
	default:
		return fmt.Errorf("%w: unknown balance field %q", apperr.Invalid, field)
	}

	ct, err := r.tx.Exec(ctx, query, string(owner.Kind), owner.ID, delta)
	if err != nil {
		if IsCheckViolation(err) {
			return fmt.Errorf("%w: balance %s/%s cannot absorb %s delta %d",
				apperr.Conflict, owner.Kind, owner.ID, field, delta)
		}
		return fmt.Errorf("apply %s delta to %s/%s: %w", field, owner.Kind, owner.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("balance %s/%s not found", owner.Kind, owner.ID)
	}
	return nil
}

// InsertTransaction - append one immutable ledger entry.
func (r *ledgerTx) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO transactions (id, owner_kind, owner_id, type, amount, currency, status, order_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, t.ID, string(t.Owner.Kind), t.Owner.ID, string(t.Type), t.Amount, t.Currency, t.Status, t.OrderID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %q: %w", t.ID, err)
	}
	return nil
}

// GetBalance - read one balance without locking; zero balance if absent.
func (r *LedgerRepo) GetBalance(ctx context.Context, owner domain.OwnerRef) (*domain.Balance, error) {
	b := domain.Balance{Owner: owner}
	err := r.db.QueryRow(ctx, `
        SELECT available, pending, total, updated_at
        FROM balances
        WHERE owner_kind = $1 AND owner_id = $2
    `, string(owner.Kind), owner.ID).Scan(&b.Available, &b.Pending, &b.Total, &b.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return &b, nil
		}
		return nil, fmt.Errorf("get balance %s/%s: %w", owner.Kind, owner.ID, err)
	}
	return &b, nil
}

// ListTransactions - the owner's ledger trail, newest first.
func (r *LedgerRepo) ListTransactions(ctx context.Context, owner domain.OwnerRef, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, owner_kind, owner_id, type, amount, currency, status, order_id, created_at
        FROM transactions
        WHERE owner_kind = $1 AND owner_id = $2
        ORDER BY created_at DESC
        LIMIT $3
    `, string(owner.Kind), owner.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions %s/%s: %w", owner.Kind, owner.ID, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var kind, typ string
		if err := rows.Scan(&t.ID, &kind, &t.Owner.ID, &typ, &t.Amount, &t.Currency, &t.Status, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		t.Owner.Kind = domain.OwnerKind(kind)
		t.Type = domain.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}
