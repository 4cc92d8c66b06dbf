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

// Listener applies the money movement each order status transition implies.
//
// The scheme: the full order amount is captured into the store's pending
// balance when the order is registered. When the courier picks the order up
// the store's payout share moves to the courier's pending balance. On
// delivery the platform commission is released into the store's available
// balance, the courier's payout moves pending to available, and the delivery
// fee is credited on top. Cancellation refunds the captured total out of the
// store's pending balance. Each (order, transition) pair settles exactly
// once; redelivered events are no-ops.
type Listener struct {
	ledger           ledgerRepository
	operationTimeout time.Duration
	logger           logx.Logger
	settlements      counter
	newID            func() string
	now              func() time.Time
}

// NewListener - creates a new settlement Listener. settlements may be nil.
func NewListener(ledger ledgerRepository, timeout time.Duration, logger logx.Logger, settlements counter) *Listener {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Listener{
		ledger:           ledger,
		operationTimeout: timeout,
		logger:           logger,
		settlements:      settlements,
		newID:            uuid.NewString,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// HandleStatusChanged settles the transition carried by the event. Statuses
// without a money side are ignored.
func (l *Listener) HandleStatusChanged(ctx context.Context, e domain.StatusChangedEvent) error {
	var apply func(ctx context.Context, tx ledgertx.Repository, o *domain.Order) error
	switch e.To {
	case domain.OrderPending:
		apply = l.capture
	case domain.OrderOnTheWay:
		apply = l.moveToCourier
	case domain.OrderDelivered:
		apply = l.release
	case domain.OrderCancelled:
		apply = l.refund
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.operationTimeout)
	defer cancel()

	var applied bool
	err := l.ledger.WithTx(ctx, func(tx ledgertx.Repository) error {
		fresh, err := tx.MarkSettled(ctx, e.OrderID, e.To)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}

		o, err := tx.GetOrder(ctx, e.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: order %q", apperr.NotFound, e.OrderID)
		}

		if err := apply(ctx, tx, o); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if l.settlements != nil {
		l.settlements.Inc()
	}
	l.logger.Info("transition settled",
		logx.String("event", "transition_settled"),
		logx.String("order_id", e.OrderID),
		logx.String("transition", string(e.To)),
	)
	return nil
}

// capture - the order total enters the store's pending balance.
func (l *Listener) capture(ctx context.Context, tx ledgertx.Repository, o *domain.Order) error {
	store := domain.OwnerRef{Kind: domain.OwnerStore, ID: o.StoreID}

	if _, err := tx.BalanceForUpdate(ctx, store); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, store, domain.FieldPending, o.Total); err != nil {
		return err
	}
	return tx.InsertTransaction(ctx, l.record(store, domain.TxIncrement, o.Total, o))
}

// moveToCourier - the payout share leaves the store and enters the courier's
// pending balance while the order is in transit.
func (l *Listener) moveToCourier(ctx context.Context, tx ledgertx.Repository, o *domain.Order) error {
	if o.CourierID == nil {
		return fmt.Errorf("%w: order %q has no courier to settle", apperr.Conflict, o.ID)
	}
	store := domain.OwnerRef{Kind: domain.OwnerStore, ID: o.StoreID}
	courier := domain.OwnerRef{Kind: domain.OwnerCourier, ID: *o.CourierID}
	payout := o.PayoutAmount()

	if _, err := tx.BalanceForUpdate(ctx, store); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, store, domain.FieldPending, -payout); err != nil {
		return err
	}
	if err := tx.InsertTransaction(ctx, l.record(store, domain.TxDecrement, payout, o)); err != nil {
		return err
	}

	if _, err := tx.BalanceForUpdate(ctx, courier); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, courier, domain.FieldPending, payout); err != nil {
		return err
	}
	return tx.InsertTransaction(ctx, l.record(courier, domain.TxIncrement, payout, o))
}

// release - on delivery the commission moves from the store's pending to its
// available balance, the courier's in-transit payout moves from pending to
// available, and the courier earns the delivery fee on top.
func (l *Listener) release(ctx context.Context, tx ledgertx.Repository, o *domain.Order) error {
	if o.CourierID == nil {
		return fmt.Errorf("%w: order %q has no courier to settle", apperr.Conflict, o.ID)
	}
	store := domain.OwnerRef{Kind: domain.OwnerStore, ID: o.StoreID}
	courier := domain.OwnerRef{Kind: domain.OwnerCourier, ID: *o.CourierID}
	commission := o.Commission()

	if _, err := tx.BalanceForUpdate(ctx, store); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, store, domain.FieldPending, -commission); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, store, domain.FieldAvailable, commission); err != nil {
		return err
	}
	if err := tx.InsertTransaction(ctx, l.record(store, domain.TxCommission, commission, o)); err != nil {
		return err
	}

	if _, err := tx.BalanceForUpdate(ctx, courier); err != nil {
		return err
	}
	payout := o.PayoutAmount()
	if err := tx.ApplyDelta(ctx, courier, domain.FieldPending, -payout); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, courier, domain.FieldAvailable, payout); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, courier, domain.FieldAvailable, o.DeliveryFee); err != nil {
		return err
	}
	return tx.InsertTransaction(ctx, l.record(courier, domain.TxDeliveryFee, o.DeliveryFee, o))
}

// refund - cancellation hands the captured total back out of the store's
// pending balance. Cancelling is illegal once the order is on the way, so the
// payout share has never left the store when this runs. If the cancel event
// outruns the capture the balance check rejects the negative delta and the
// redelivery applies both in order.
func (l *Listener) refund(ctx context.Context, tx ledgertx.Repository, o *domain.Order) error {
	store := domain.OwnerRef{Kind: domain.OwnerStore, ID: o.StoreID}

	if _, err := tx.BalanceForUpdate(ctx, store); err != nil {
		return err
	}
	if err := tx.ApplyDelta(ctx, store, domain.FieldPending, -o.Total); err != nil {
		return err
	}
	return tx.InsertTransaction(ctx, l.record(store, domain.TxDecrement, o.Total, o))
}

func (l *Listener) record(owner domain.OwnerRef, typ domain.TransactionType, amount int64, o *domain.Order) *domain.Transaction {
	orderID := o.ID
	return &domain.Transaction{
		ID:        l.newID(),
		Owner:     owner,
		Type:      typ,
		Amount:    amount,
		Currency:  o.Currency,
		Status:    "completed",
		OrderID:   &orderID,
		CreatedAt: l.now(),
	}
}
