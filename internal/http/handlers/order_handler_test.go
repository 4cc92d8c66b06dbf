package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

type stubOrderUsecase struct {
	registerFn   func(ctx context.Context, o *domain.Order) (*domain.Order, error)
	transitionFn func(ctx context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error)
	getFn        func(ctx context.Context, orderID string) (*domain.Order, []domain.OrderStatusHistory, error)
}

func (s *stubOrderUsecase) Register(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if s.registerFn == nil {
		panic("Register not expected in this test")
	}
	return s.registerFn(ctx, o)
}

func (s *stubOrderUsecase) RequestTransition(ctx context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error) {
	if s.transitionFn == nil {
		panic("RequestTransition not expected in this test")
	}
	return s.transitionFn(ctx, orderID, to, note)
}

func (s *stubOrderUsecase) Get(ctx context.Context, orderID string) (*domain.Order, []domain.OrderStatusHistory, error) {
	if s.getFn == nil {
		panic("Get not expected in this test")
	}
	return s.getFn(ctx, orderID)
}

func withURLParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestOrderHandler_Create_OK(t *testing.T) {
	t.Parallel()

	body := `{
		"store_id": "store-1",
		"customer_id": "cust-1",
		"total": 1000,
		"delivery_fee": 150,
		"commission_bps": 1000,
		"pickup": {"lat": 55.75, "lng": 37.61},
		"dropoff": {"lat": 55.76, "lng": 37.62}
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uc := &stubOrderUsecase{
		registerFn: func(_ context.Context, o *domain.Order) (*domain.Order, error) {
			require.Equal(t, "store-1", o.StoreID)
			require.Equal(t, int64(1000), o.Total)
			o.ID = "ord-1"
			o.Status = domain.OrderPending
			o.Currency = "USD"
			o.CreatedAt = created
			return o, nil
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Create(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/orders/ord-1", rr.Header().Get("Location"))

	expectedJSON := `{
		"id": "ord-1",
		"status": "pending",
		"store_id": "store-1",
		"customer_id": "cust-1",
		"total": 1000,
		"delivery_fee": 150,
		"tax": 0,
		"service_fee": 0,
		"commission_bps": 1000,
		"currency": "USD",
		"pickup": {"lat": 55.75, "lng": 37.61},
		"dropoff": {"lat": 55.76, "lng": 37.62},
		"created_at": "2025-06-01T12:00:00Z"
	}`
	assert.JSONEq(t, expectedJSON, rr.Body.String())
}

func TestOrderHandler_Create_Invalid(t *testing.T) {
	t.Parallel()

	body := `{"store_id": "", "customer_id": "cust-1"}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		registerFn: func(context.Context, *domain.Order) (*domain.Order, error) {
			return nil, apperr.Invalid
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_Create_BadJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{broken"))
	rr := httptest.NewRecorder()

	h := NewOrderHandler(logx.Nop(), &stubOrderUsecase{})
	h.Create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error": "invalid json"}`, rr.Body.String())
}

func TestOrderHandler_Create_Duplicate(t *testing.T) {
	t.Parallel()

	body := `{"id": "ord-1", "store_id": "store-1", "customer_id": "cust-1", "total": 1,
		"pickup": {"lat": 1, "lng": 1}, "dropoff": {"lat": 2, "lng": 2}}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		registerFn: func(context.Context, *domain.Order) (*domain.Order, error) {
			return nil, apperr.Conflict
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Create(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderHandler_Transition_OK(t *testing.T) {
	t.Parallel()

	body := `{"status": "confirmed", "note": "store accepted"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1/status", strings.NewReader(body))
	req = withURLParam(req, "id", "ord-1")
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		transitionFn: func(_ context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error) {
			require.Equal(t, "ord-1", orderID)
			require.Equal(t, domain.OrderConfirmed, to)
			require.Equal(t, "store accepted", note)
			return &domain.Order{ID: orderID, Status: to, StoreID: "store-1", CustomerID: "cust-1", Currency: "USD"}, nil
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Transition(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"confirmed"`)
}

func TestOrderHandler_Transition_InvalidTransition(t *testing.T) {
	t.Parallel()

	body := `{"status": "delivered"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1/status", strings.NewReader(body))
	req = withURLParam(req, "id", "ord-1")
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		transitionFn: func(context.Context, string, domain.OrderStatus, string) (*domain.Order, error) {
			return nil, &apperr.InvalidTransitionError{
				Current:   domain.OrderPending,
				Requested: domain.OrderDelivered,
				Allowed:   []domain.OrderStatus{domain.OrderConfirmed, domain.OrderCancelled},
			}
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Transition(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"confirmed", "cancelled"}, resp.Allowed)
}

func TestOrderHandler_Transition_Terminal(t *testing.T) {
	t.Parallel()

	body := `{"status": "confirmed"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1/status", strings.NewReader(body))
	req = withURLParam(req, "id", "ord-1")
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		transitionFn: func(context.Context, string, domain.OrderStatus, string) (*domain.Order, error) {
			return nil, apperr.TerminalState
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Transition(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error": "order is in a terminal state"}`, rr.Body.String())
}

func TestOrderHandler_Get_OK(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req = withURLParam(req, "id", "ord-1")
	rr := httptest.NewRecorder()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uc := &stubOrderUsecase{
		getFn: func(_ context.Context, orderID string) (*domain.Order, []domain.OrderStatusHistory, error) {
			require.Equal(t, "ord-1", orderID)
			o := &domain.Order{ID: orderID, Status: domain.OrderConfirmed, StoreID: "store-1", CustomerID: "cust-1", Currency: "USD", CreatedAt: created}
			trail := []domain.OrderStatusHistory{
				{OrderID: orderID, Status: domain.OrderPending, Note: "registered", CreatedAt: created},
				{OrderID: orderID, Status: domain.OrderConfirmed, CreatedAt: created.Add(time.Minute)},
			}
			return o, trail, nil
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Get(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp orderDetailsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.Order.ID)
	assert.Len(t, resp.History, 2)
	assert.Equal(t, "pending", resp.History[0].Status)
}

func TestOrderHandler_Get_NotFound(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	req = withURLParam(req, "id", "missing")
	rr := httptest.NewRecorder()

	uc := &stubOrderUsecase{
		getFn: func(context.Context, string) (*domain.Order, []domain.OrderStatusHistory, error) {
			return nil, nil, apperr.NotFound
		},
	}

	h := NewOrderHandler(logx.Nop(), uc)
	h.Get(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
