// Package memstore provides in-memory stand-ins for the storage ports, used
// by service unit tests in place of postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

// DispatchStore is an in-memory dispatchtx.Repository plus the non-tx reads
// the services expect from the real repo. WithTx runs fn against the store
// itself under a lock; there is no rollback, tests assert on end state.
type DispatchStore struct {
	mu          sync.Mutex
	Orders      map[string]*domain.Order
	Assignments map[string]*domain.Assignment
	Trail       []domain.OrderStatusHistory
	Flagged     map[string]time.Time

	// FailTx, when set, is returned by WithTx before fn runs.
	FailTx error
}

// NewDispatchStore creates an empty store.
func NewDispatchStore() *DispatchStore {
	return &DispatchStore{
		Orders:      make(map[string]*domain.Order),
		Assignments: make(map[string]*domain.Assignment),
		Flagged:     make(map[string]time.Time),
	}
}

var _ dispatchtx.Repository = (*DispatchStore)(nil)

// WithTx runs fn against the store under its lock.
func (m *DispatchStore) WithTx(_ context.Context, fn func(tx dispatchtx.Repository) error) error {
	if m.FailTx != nil {
		return m.FailTx
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

// Seed inserts an order directly, bypassing the tx surface.
func (m *DispatchStore) Seed(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.Orders[o.ID] = &cp
}

// SeedAssignment inserts an assignment directly.
func (m *DispatchStore) SeedAssignment(a *domain.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Assignments[a.ID] = &cp
}

func (m *DispatchStore) GetOrderForUpdate(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *DispatchStore) InsertOrder(_ context.Context, o *domain.Order) error {
	if _, ok := m.Orders[o.ID]; ok {
		return fmt.Errorf("%w: order %q already registered", apperr.Conflict, o.ID)
	}
	cp := *o
	m.Orders[o.ID] = &cp
	return nil
}

func (m *DispatchStore) UpdateOrderStatus(_ context.Context, orderID string, from, to domain.OrderStatus, at time.Time) error {
	o, ok := m.Orders[orderID]
	if !ok || o.Status != from {
		return fmt.Errorf("order %q no longer in status %q", orderID, from)
	}
	o.Status = to
	switch to {
	case domain.OrderReadyForDelivery:
		t := at
		o.ReadyAt = &t
	case domain.OrderDelivered:
		t := at
		o.DeliveredAt = &t
	}
	return nil
}

func (m *DispatchStore) SetOrderCourier(_ context.Context, orderID, courierID string) error {
	o, ok := m.Orders[orderID]
	if !ok {
		return fmt.Errorf("order %q not found", orderID)
	}
	o.CourierID = &courierID
	return nil
}

func (m *DispatchStore) AppendHistory(_ context.Context, h *domain.OrderStatusHistory) error {
	h.ID = int64(len(m.Trail) + 1)
	m.Trail = append(m.Trail, *h)
	return nil
}

func (m *DispatchStore) ActiveAssignmentForUpdate(_ context.Context, orderID string) (*domain.Assignment, error) {
	for _, a := range m.Assignments {
		if a.OrderID == orderID && !a.State.Terminal() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *DispatchStore) AssignmentForUpdate(_ context.Context, assignmentID string) (*domain.Assignment, error) {
	a, ok := m.Assignments[assignmentID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *DispatchStore) InsertAssignment(_ context.Context, a *domain.Assignment) error {
	for _, existing := range m.Assignments {
		if existing.OrderID == a.OrderID && !existing.State.Terminal() {
			return fmt.Errorf("%w: order %q already has an active assignment", apperr.Conflict, a.OrderID)
		}
	}
	cp := *a
	m.Assignments[a.ID] = &cp
	return nil
}

func (m *DispatchStore) UpdateAssignmentState(_ context.Context, assignmentID string, from, to domain.AssignmentState) (bool, error) {
	a, ok := m.Assignments[assignmentID]
	if !ok || a.State != from {
		return false, nil
	}
	a.State = to
	return true, nil
}

func (m *DispatchStore) SetAssignmentAccepted(_ context.Context, assignmentID string, at time.Time) error {
	a, ok := m.Assignments[assignmentID]
	if !ok {
		return fmt.Errorf("assignment %q not found", assignmentID)
	}
	t := at
	a.AcceptedAt = &t
	return nil
}

func (m *DispatchStore) TriedCourierIDs(_ context.Context, orderID string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range m.Assignments {
		if a.OrderID != orderID {
			continue
		}
		if _, ok := seen[a.CourierID]; ok {
			continue
		}
		seen[a.CourierID] = struct{}{}
		ids = append(ids, a.CourierID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *DispatchStore) CourierHasActiveAssignment(_ context.Context, courierID string) (bool, error) {
	for _, a := range m.Assignments {
		if a.CourierID == courierID && !a.State.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *DispatchStore) FirstAssignedAt(_ context.Context, orderID string) (*time.Time, error) {
	var first *time.Time
	for _, a := range m.Assignments {
		if a.OrderID != orderID {
			continue
		}
		if first == nil || a.AssignedAt.Before(*first) {
			t := a.AssignedAt
			first = &t
		}
	}
	return first, nil
}

// GetOrder - non-tx read, mirrors the real repo.
func (m *DispatchStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// History - non-tx read of the order's status trail.
func (m *DispatchStore) History(_ context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderStatusHistory
	for _, h := range m.Trail {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// DueTimeouts mirrors the real repo's sweep query over expired offers.
func (m *DispatchStore) DueTimeouts(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, a := range m.Assignments {
		if a.State == domain.AssignmentAssigned && !a.ExpiresAt.After(now) {
			ids = append(ids, a.ID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// StaleReadyOrders mirrors the confirmation-window sweep query.
func (m *DispatchStore) StaleReadyOrders(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, o := range m.Orders {
		if o.Status != domain.OrderReadyForDelivery || o.ReadyAt == nil || o.ReadyAt.After(cutoff) {
			continue
		}
		if _, flagged := m.Flagged[o.ID]; flagged {
			continue
		}
		accepted := false
		for _, a := range m.Assignments {
			if a.OrderID == o.ID && (a.State == domain.AssignmentAccepted || a.State == domain.AssignmentInTransit) {
				accepted = true
				break
			}
		}
		if !accepted {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// MarkNotAcceptedFlagged mirrors the one-shot flag update.
func (m *DispatchStore) MarkNotAcceptedFlagged(_ context.Context, orderID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Flagged[orderID]; ok {
		return false, nil
	}
	m.Flagged[orderID] = at
	return true, nil
}

// RedispatchableOrders mirrors the orphaned-ready-order sweep query.
func (m *DispatchStore) RedispatchableOrders(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, o := range m.Orders {
		if o.Status != domain.OrderReadyForDelivery {
			continue
		}
		active := false
		for _, a := range m.Assignments {
			if a.OrderID == o.ID && !a.State.Terminal() {
				active = true
				break
			}
		}
		if !active {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Order returns the stored order for assertions.
func (m *DispatchStore) Order(orderID string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Orders[orderID]
}

// ActiveFor returns the order's non-terminal assignment for assertions.
func (m *DispatchStore) ActiveFor(orderID string) *domain.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Assignments {
		if a.OrderID == orderID && !a.State.Terminal() {
			return a
		}
	}
	return nil
}

// Assignment returns one assignment for assertions.
func (m *DispatchStore) Assignment(id string) *domain.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Assignments[id]
}
