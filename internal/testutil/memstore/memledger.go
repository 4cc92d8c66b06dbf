package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/ledgertx"
)

// LedgerStore is an in-memory ledgertx.Repository. It shares order data with
// a DispatchStore so settlement tests see the orders the dispatch side wrote.
type LedgerStore struct {
	mu           sync.Mutex
	orders       *DispatchStore
	Balances     map[domain.OwnerRef]*domain.Balance
	Transactions []domain.Transaction
	Settled      map[string]struct{}
}

// NewLedgerStore creates an empty ledger backed by orders for order reads.
func NewLedgerStore(orders *DispatchStore) *LedgerStore {
	return &LedgerStore{
		orders:   orders,
		Balances: make(map[domain.OwnerRef]*domain.Balance),
		Settled:  make(map[string]struct{}),
	}
}

var _ ledgertx.Repository = (*LedgerStore)(nil)

// WithTx runs fn against the store under its lock.
func (m *LedgerStore) WithTx(_ context.Context, fn func(tx ledgertx.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *LedgerStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if m.orders == nil {
		return nil, nil
	}
	return m.orders.GetOrder(ctx, orderID)
}

func (m *LedgerStore) MarkSettled(_ context.Context, orderID string, transition domain.OrderStatus) (bool, error) {
	key := orderID + "/" + string(transition)
	if _, ok := m.Settled[key]; ok {
		return false, nil
	}
	m.Settled[key] = struct{}{}
	return true, nil
}

func (m *LedgerStore) BalanceForUpdate(_ context.Context, owner domain.OwnerRef) (*domain.Balance, error) {
	b, ok := m.Balances[owner]
	if !ok {
		b = &domain.Balance{Owner: owner}
		m.Balances[owner] = b
	}
	cp := *b
	return &cp, nil
}

func (m *LedgerStore) ApplyDelta(_ context.Context, owner domain.OwnerRef, field domain.BalanceField, delta int64) error {
	b, ok := m.Balances[owner]
	if !ok {
		b = &domain.Balance{Owner: owner}
		m.Balances[owner] = b
	}
	switch field {
	case domain.FieldAvailable:
		b.Available += delta
	case domain.FieldPending:
		b.Pending += delta
	default:
		return fmt.Errorf("%w: unknown balance field %q", apperr.Invalid, field)
	}
	b.Total += delta
	if !b.Consistent() {
		b.Total -= delta
		switch field {
		case domain.FieldAvailable:
			b.Available -= delta
		case domain.FieldPending:
			b.Pending -= delta
		}
		return fmt.Errorf("%w: balance %s/%s cannot absorb %s delta %d",
			apperr.Conflict, owner.Kind, owner.ID, field, delta)
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *LedgerStore) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	m.Transactions = append(m.Transactions, *t)
	return nil
}

// GetBalance - non-tx read, mirrors the real repo; zero balance if absent.
func (m *LedgerStore) GetBalance(_ context.Context, owner domain.OwnerRef) (*domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Balances[owner]
	if !ok {
		return &domain.Balance{Owner: owner}, nil
	}
	cp := *b
	return &cp, nil
}

// ListTransactions - non-tx read, newest first.
func (m *LedgerStore) ListTransactions(_ context.Context, owner domain.OwnerRef, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for i := len(m.Transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Transactions[i].Owner == owner {
			out = append(out, m.Transactions[i])
		}
	}
	return out, nil
}

// Balance returns the stored balance for assertions.
func (m *LedgerStore) Balance(owner domain.OwnerRef) domain.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Balances[owner]
	if !ok {
		return domain.Balance{Owner: owner}
	}
	return *b
}
