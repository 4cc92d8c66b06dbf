//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/repository"
)

type DispatchRepositorySuite struct {
	suite.Suite
	repo *repository.DispatchRepo
}

func (s *DispatchRepositorySuite) SetupSuite() {
	s.repo = repository.NewDispatchRepo(tcPool)
}

func (s *DispatchRepositorySuite) SetupTest() {
	ctx := context.Background()
	_, err := tcPool.Exec(ctx, `TRUNCATE assignments, order_status_history, settlements, transactions, balances, orders CASCADE`)
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) newOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:            uuid.NewString(),
		Status:        status,
		StoreID:       "store-1",
		CustomerID:    "customer-1",
		Total:         1000,
		DeliveryFee:   150,
		CommissionBps: 1000,
		Currency:      "USD",
		Pickup:        domain.Point{Lat: 55.75, Lng: 37.61},
		Dropoff:       domain.Point{Lat: 55.76, Lng: 37.62},
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *DispatchRepositorySuite) insertOrder(o *domain.Order) {
	err := s.repo.WithTx(context.Background(), func(tx dispatchtx.Repository) error {
		return tx.InsertOrder(context.Background(), o)
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestInsertAndGetOrder() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderPending)
	o.PreferredCouriers = []string{"courier-7", "courier-9"}
	s.insertOrder(o)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(o.ID, got.ID)
	s.Equal(domain.OrderPending, got.Status)
	s.Equal(int64(1000), got.Total)
	s.Equal([]string{"courier-7", "courier-9"}, got.PreferredCouriers)
	s.Nil(got.CourierID)
}

func (s *DispatchRepositorySuite) TestGetOrderMissing() {
	got, err := s.repo.GetOrder(context.Background(), uuid.NewString())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *DispatchRepositorySuite) TestUpdateOrderStatusCAS() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderPending)
	s.insertOrder(o)

	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, o.ID, domain.OrderPending, domain.OrderConfirmed, now)
	})
	s.Require().NoError(err)

	// stale expectation: the row is confirmed now, not pending
	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, o.ID, domain.OrderPending, domain.OrderCancelled, now)
	})
	s.Require().Error(err)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderConfirmed, got.Status)
}

func (s *DispatchRepositorySuite) TestReadyAndDeliveredTimestamps() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderProcessing)
	s.insertOrder(o)

	readyAt := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, o.ID, domain.OrderProcessing, domain.OrderReadyForDelivery, readyAt)
	})
	s.Require().NoError(err)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.ReadyAt)
	s.Nil(got.DeliveredAt)
}

func (s *DispatchRepositorySuite) TestAppendHistory() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderPending)
	s.insertOrder(o)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		for _, st := range []domain.OrderStatus{domain.OrderPending, domain.OrderConfirmed} {
			h := &domain.OrderStatusHistory{OrderID: o.ID, Status: st, CreatedAt: time.Now().UTC()}
			if err := tx.AppendHistory(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)

	trail, err := s.repo.History(ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal(domain.OrderPending, trail[0].Status)
	s.Equal(domain.OrderConfirmed, trail[1].Status)
}

func (s *DispatchRepositorySuite) newAssignment(orderID, courierID string) *domain.Assignment {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Assignment{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		CourierID:       courierID,
		State:           domain.AssignmentAssigned,
		AssignedAt:      now,
		ExpiresAt:       now.Add(2 * time.Minute),
		Pickup:          domain.Point{Lat: 55.75, Lng: 37.61},
		Dropoff:         domain.Point{Lat: 55.76, Lng: 37.62},
		DistanceKm:      1.2,
		EstimatedTravel: 5 * time.Minute,
		EstimatedEarn:   150,
	}
}

func (s *DispatchRepositorySuite) TestSingleActiveAssignmentPerOrder() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderReadyForDelivery)
	s.insertOrder(o)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, s.newAssignment(o.ID, "courier-a"))
	})
	s.Require().NoError(err)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, s.newAssignment(o.ID, "courier-b"))
	})
	s.Require().Error(err)
	s.ErrorIs(err, apperr.Conflict)
}

func (s *DispatchRepositorySuite) TestAssignmentStateCAS() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderReadyForDelivery)
	s.insertOrder(o)

	a := s.newAssignment(o.ID, "courier-a")
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, a)
	})
	s.Require().NoError(err)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		ok, err := tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentTimedOut)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentAccepted)
		s.Require().NoError(err)
		s.False(ok)
		return nil
	})
	s.Require().NoError(err)

	// a terminal row no longer counts as active, so a new one fits
	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, s.newAssignment(o.ID, "courier-b"))
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestTriedCouriersAndFirstAssignedAt() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderReadyForDelivery)
	s.insertOrder(o)

	first := s.newAssignment(o.ID, "courier-a")
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.InsertAssignment(ctx, first); err != nil {
			return err
		}
		ok, err := tx.UpdateAssignmentState(ctx, first.ID, domain.AssignmentAssigned, domain.AssignmentRejected)
		s.Require().NoError(err)
		s.True(ok)
		return tx.InsertAssignment(ctx, s.newAssignment(o.ID, "courier-b"))
	})
	s.Require().NoError(err)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		tried, err := tx.TriedCourierIDs(ctx, o.ID)
		s.Require().NoError(err)
		s.ElementsMatch([]string{"courier-a", "courier-b"}, tried)

		at, err := tx.FirstAssignedAt(ctx, o.ID)
		s.Require().NoError(err)
		s.Require().NotNil(at)
		s.WithinDuration(first.AssignedAt, *at, time.Second)

		busy, err := tx.CourierHasActiveAssignment(ctx, "courier-b")
		s.Require().NoError(err)
		s.True(busy)

		free, err := tx.CourierHasActiveAssignment(ctx, "courier-a")
		s.Require().NoError(err)
		s.False(free)
		return nil
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestDueTimeouts() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderReadyForDelivery)
	s.insertOrder(o)

	a := s.newAssignment(o.ID, "courier-a")
	a.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, a)
	})
	s.Require().NoError(err)

	due, err := s.repo.DueTimeouts(ctx, time.Now().UTC(), 10)
	s.Require().NoError(err)
	s.Equal([]string{a.ID}, due)
}

func (s *DispatchRepositorySuite) TestStaleReadyOrdersFlaggedOnce() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderProcessing)
	s.insertOrder(o)

	readyAt := time.Now().UTC().Add(-20 * time.Minute)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, o.ID, domain.OrderProcessing, domain.OrderReadyForDelivery, readyAt)
	})
	s.Require().NoError(err)

	cutoff := time.Now().UTC().Add(-15 * time.Minute)
	stale, err := s.repo.StaleReadyOrders(ctx, cutoff, 10)
	s.Require().NoError(err)
	s.Equal([]string{o.ID}, stale)

	ok, err := s.repo.MarkNotAcceptedFlagged(ctx, o.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.repo.MarkNotAcceptedFlagged(ctx, o.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.False(ok)

	stale, err = s.repo.StaleReadyOrders(ctx, cutoff, 10)
	s.Require().NoError(err)
	s.Empty(stale)
}

func (s *DispatchRepositorySuite) TestRedispatchableOrders() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderProcessing)
	s.insertOrder(o)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, o.ID, domain.OrderProcessing, domain.OrderReadyForDelivery, time.Now().UTC())
	})
	s.Require().NoError(err)

	ids, err := s.repo.RedispatchableOrders(ctx, 10)
	s.Require().NoError(err)
	s.Equal([]string{o.ID}, ids)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertAssignment(ctx, s.newAssignment(o.ID, "courier-a"))
	})
	s.Require().NoError(err)

	ids, err = s.repo.RedispatchableOrders(ctx, 10)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *DispatchRepositorySuite) TestRollbackOnError() {
	ctx := context.Background()
	o := s.newOrder(domain.OrderPending)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().Error(err)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Nil(got)
}

func TestDispatchRepositorySuite(t *testing.T) {
	suite.Run(t, new(DispatchRepositorySuite))
}
