package orderstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/testutil/memstore"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.StatusChangedEvent
	fail   error
}

func (r *eventRecorder) PublishStatusChanged(_ context.Context, e domain.StatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) all() []domain.StatusChangedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StatusChangedEvent(nil), r.events...)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *memstore.DispatchStore, events *eventRecorder) *Service {
	s := NewService(store, events, 3*time.Second, logx.Nop())
	s.now = func() time.Time { return testNow }
	s.newID = func() string { return "generated-id" }
	return s
}

func validOrder() *domain.Order {
	return &domain.Order{
		StoreID:       "store-1",
		CustomerID:    "customer-1",
		Total:         1000,
		DeliveryFee:   150,
		CommissionBps: 1000,
		Pickup:        domain.Point{Lat: 55.75, Lng: 37.61},
		Dropoff:       domain.Point{Lat: 55.76, Lng: 37.62},
	}
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	events := &eventRecorder{}
	svc := newTestService(store, events)

	got, err := svc.Register(context.Background(), validOrder())
	require.NoError(t, err)
	require.Equal(t, "generated-id", got.ID)
	require.Equal(t, domain.OrderPending, got.Status)
	require.Equal(t, "USD", got.Currency)
	require.Equal(t, testNow, got.CreatedAt)

	stored := store.Order("generated-id")
	require.NotNil(t, stored)
	require.Equal(t, domain.OrderPending, stored.Status)

	trail, err := store.History(context.Background(), "generated-id")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, domain.OrderPending, trail[0].Status)

	published := events.all()
	require.Len(t, published, 1)
	require.Equal(t, domain.OrderPending, published[0].To)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(o *domain.Order)
	}{
		{"empty store", func(o *domain.Order) { o.StoreID = " " }},
		{"empty customer", func(o *domain.Order) { o.CustomerID = "" }},
		{"negative total", func(o *domain.Order) { o.Total = -1 }},
		{"negative fee", func(o *domain.Order) { o.DeliveryFee = -5 }},
		{"commission above full", func(o *domain.Order) { o.CommissionBps = 10_001 }},
		{"latitude out of range", func(o *domain.Order) { o.Pickup.Lat = 91 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(memstore.NewDispatchStore(), &eventRecorder{})
			o := validOrder()
			tc.mutate(o)
			_, err := svc.Register(context.Background(), o)
			require.ErrorIs(t, err, apperr.Invalid)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})

	o := validOrder()
	o.ID = "order-1"
	_, err := svc.Register(context.Background(), o)
	require.NoError(t, err)

	again := validOrder()
	again.ID = "order-1"
	_, err = svc.Register(context.Background(), again)
	require.ErrorIs(t, err, apperr.Conflict)
}

func TestRequestTransition_HappyPath(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	events := &eventRecorder{}
	svc := newTestService(store, events)

	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderPending})

	got, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderConfirmed, "store confirmed")
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, got.Status)

	trail, err := store.History(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, "store confirmed", trail[0].Note)

	published := events.all()
	require.Len(t, published, 1)
	require.Equal(t, domain.OrderPending, published[0].From)
	require.Equal(t, domain.OrderConfirmed, published[0].To)
}

func TestRequestTransition_InvalidEdge(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderPending})

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderDelivered, "")
	ite, ok := apperr.IsInvalidTransition(err)
	require.True(t, ok)
	require.Equal(t, domain.OrderPending, ite.Current)
	require.Equal(t, domain.OrderDelivered, ite.Requested)
	require.Equal(t, []domain.OrderStatus{domain.OrderConfirmed, domain.OrderCancelled}, ite.Allowed)

	// state untouched
	require.Equal(t, domain.OrderPending, store.Order("order-1").Status)
}

func TestRequestTransition_TerminalState(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderDelivered})

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderCancelled, "")
	require.ErrorIs(t, err, apperr.TerminalState)

	store.Seed(&domain.Order{ID: "order-2", Status: domain.OrderCancelled})
	_, err = svc.RequestTransition(context.Background(), "order-2", domain.OrderConfirmed, "")
	require.ErrorIs(t, err, apperr.TerminalState)
}

func TestRequestTransition_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(memstore.NewDispatchStore(), &eventRecorder{})
	_, err := svc.RequestTransition(context.Background(), "missing", domain.OrderConfirmed, "")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestRequestTransition_OnTheWayRequiresCourier(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderReadyForDelivery})

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderOnTheWay, "")
	require.ErrorIs(t, err, apperr.Conflict)
}

func TestRequestTransition_CancelRetiresAssignment(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderReadyForDelivery})
	store.SeedAssignment(&domain.Assignment{
		ID: "asg-1", OrderID: "order-1", CourierID: "courier-1",
		State: domain.AssignmentAssigned, AssignedAt: testNow, ExpiresAt: testNow.Add(2 * time.Minute),
	})

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderCancelled, "customer cancelled")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCancelled, store.Assignment("asg-1").State)
	require.Nil(t, store.ActiveFor("order-1"))
}

func TestRequestTransition_AssignmentFollowsTransitAndDelivery(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	courier := "courier-1"
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderReadyForDelivery, CourierID: &courier})
	store.SeedAssignment(&domain.Assignment{
		ID: "asg-1", OrderID: "order-1", CourierID: courier,
		State: domain.AssignmentAccepted, AssignedAt: testNow, ExpiresAt: testNow.Add(2 * time.Minute),
	})

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderOnTheWay, "")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentInTransit, store.Assignment("asg-1").State)

	_, err = svc.RequestTransition(context.Background(), "order-1", domain.OrderDelivered, "")
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentDelivered, store.Assignment("asg-1").State)

	o := store.Order("order-1")
	require.Equal(t, domain.OrderDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)
}

func TestRequestTransition_PublishFailureDoesNotFail(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	events := &eventRecorder{fail: errors.New("broker down")}
	svc := newTestService(store, events)
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderPending})

	got, err := svc.RequestTransition(context.Background(), "order-1", domain.OrderConfirmed, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, got.Status)
}

func TestGet(t *testing.T) {
	t.Parallel()

	store := memstore.NewDispatchStore()
	svc := newTestService(store, &eventRecorder{})
	store.Seed(&domain.Order{ID: "order-1", Status: domain.OrderPending})

	o, trail, err := svc.Get(context.Background(), "order-1")
	require.NoError(t, err)
	require.Equal(t, "order-1", o.ID)
	require.Empty(t, trail)

	_, _, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.NotFound)

	_, _, err = svc.Get(context.Background(), "  ")
	require.ErrorIs(t, err, apperr.Invalid)
}
