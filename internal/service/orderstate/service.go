package orderstate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

// Service owns the order lifecycle: registration and guarded status
// transitions, with a history row per change.
type Service struct {
	repo             stateRepository
	events           eventPublisher
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string
}

// NewService - creates a new order state Service.
func NewService(r stateRepository, events eventPublisher, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		repo:             r,
		events:           events,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Register creates the order in pending and publishes the first status event.
func (s *Service) Register(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if err := validateNewOrder(o); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	if o.ID == "" {
		o.ID = s.newID()
	}
	o.Status = domain.OrderPending
	o.CreatedAt = now
	if o.Currency == "" {
		o.Currency = "USD"
	}

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &domain.OrderStatusHistory{
			OrderID:   o.ID,
			Status:    domain.OrderPending,
			Note:      "registered",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order registered",
		logx.String("event", "order_registered"),
		logx.String("order_id", o.ID),
		logx.String("store_id", o.StoreID),
		logx.Int64("total", o.Total),
	)

	s.publish(ctx, domain.StatusChangedEvent{
		OrderID:    o.ID,
		To:         domain.OrderPending,
		OccurredAt: now,
	})

	return o, nil
}

// RequestTransition moves the order to the requested status if the transition
// table allows it. Cancelling also retires the order's active assignment; the
// courier-side assignment row follows the order into transit and delivery.
func (s *Service) RequestTransition(ctx context.Context, orderID string, to domain.OrderStatus, note string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", apperr.Invalid)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.Invalid, to)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	var updated *domain.Order
	var event domain.StatusChangedEvent

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: order %q", apperr.NotFound, orderID)
		}
		if o.Status.Terminal() {
			return fmt.Errorf("%w: order %q is %s", apperr.TerminalState, orderID, o.Status)
		}
		if !o.Status.CanTransition(to) {
			return &apperr.InvalidTransitionError{
				Current:   o.Status,
				Requested: to,
				Allowed:   o.Status.NextStatuses(),
			}
		}
		if to == domain.OrderOnTheWay && o.CourierID == nil {
			return fmt.Errorf("%w: order %q has no accepted courier", apperr.Conflict, orderID)
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, o.Status, to, now); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, &domain.OrderStatusHistory{
			OrderID:   orderID,
			Status:    to,
			Note:      note,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.syncAssignment(ctx, tx, orderID, to); err != nil {
			return err
		}

		event = domain.StatusChangedEvent{
			OrderID:    orderID,
			From:       o.Status,
			To:         to,
			Note:       note,
			OccurredAt: now,
		}
		o.Status = to
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		logx.String("event", "order_status_changed"),
		logx.String("order_id", orderID),
		logx.String("from", string(event.From)),
		logx.String("to", string(event.To)),
	)

	s.publish(ctx, event)

	return updated, nil
}

// syncAssignment keeps the active assignment row in step with the order.
func (s *Service) syncAssignment(ctx context.Context, tx dispatchtx.Repository, orderID string, to domain.OrderStatus) error {
	var next domain.AssignmentState
	switch to {
	case domain.OrderCancelled:
		next = domain.AssignmentCancelled
	case domain.OrderOnTheWay:
		next = domain.AssignmentInTransit
	case domain.OrderDelivered:
		next = domain.AssignmentDelivered
	default:
		return nil
	}

	a, err := tx.ActiveAssignmentForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	if _, err := tx.UpdateAssignmentState(ctx, a.ID, a.State, next); err != nil {
		return err
	}
	return nil
}

// Get returns the order together with its status trail.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, []domain.OrderStatusHistory, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil, fmt.Errorf("%w: empty order id", apperr.Invalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, fmt.Errorf("%w: order %q", apperr.NotFound, orderID)
	}

	trail, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return o, trail, nil
}

// publish sends the status event after commit; delivery failures are logged,
// the sweep loops recover anything a lost event would have driven.
func (s *Service) publish(ctx context.Context, e domain.StatusChangedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStatusChanged(ctx, e); err != nil {
		s.logger.Warn("publish status event failed",
			logx.String("order_id", e.OrderID),
			logx.String("to", string(e.To)),
			logx.Err(err),
		)
	}
}

func validateNewOrder(o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", apperr.Invalid)
	}
	if strings.TrimSpace(o.StoreID) == "" || strings.TrimSpace(o.CustomerID) == "" {
		return fmt.Errorf("%w: store and customer are required", apperr.Invalid)
	}
	if o.Total < 0 || o.DeliveryFee < 0 || o.Tax < 0 || o.ServiceFee < 0 {
		return fmt.Errorf("%w: negative amount", apperr.Invalid)
	}
	if o.CommissionBps < 0 || o.CommissionBps > 10_000 {
		return fmt.Errorf("%w: commission must be within [0, 10000] bps", apperr.Invalid)
	}
	if !o.Pickup.Valid() || !o.Dropoff.Valid() {
		return fmt.Errorf("%w: coordinates out of range", apperr.Invalid)
	}
	return nil
}
