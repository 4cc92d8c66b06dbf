package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

const orderColumns = `
    id, status, store_id, customer_id, courier_id,
    total, delivery_fee, tax, service_fee, commission_bps, currency,
    pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, preferred_couriers,
    created_at, ready_at, estimated_delivery, delivered_at`

// DispatchRepo is the storage behind the state machine, the assignment engine
// and the timeout scheduler.
type DispatchRepo struct {
	db *pgxpool.Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DispatchRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
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

	wrapped := &dispatchTx{tx: tx}

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

// dispatchTx implements dispatchtx.Repository inside one pgx transaction.
type dispatchTx struct {
	tx pgx.Tx
}

var _ dispatchtx.Repository = (*dispatchTx)(nil)

// GetOrderForUpdate loads an order and locks its row; nil if absent.
func (r *dispatchTx) GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT`+orderColumns+`
        FROM orders
        WHERE id = $1
        FOR UPDATE
    `, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %q for update: %w", orderID, err)
	}
	return o, nil
}

// InsertOrder - insert a newly registered order.
func (r *dispatchTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO orders (
            id, status, store_id, customer_id, courier_id,
            total, delivery_fee, tax, service_fee, commission_bps, currency,
            pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, preferred_couriers,
            created_at, estimated_delivery
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
    `,
		o.ID, string(o.Status), o.StoreID, o.CustomerID, o.CourierID,
		o.Total, o.DeliveryFee, o.Tax, o.ServiceFee, o.CommissionBps, o.Currency,
		o.Pickup.Lat, o.Pickup.Lng, o.Dropoff.Lat, o.Dropoff.Lng, o.PreferredCouriers,
		o.CreatedAt, o.EstimatedDelivery,
	)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: order %q already registered", apperr.Conflict, o.ID)
		}
		return fmt.Errorf("insert order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateOrderStatus applies from->to, stamping ready/delivered timestamps.
func (r *dispatchTx) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status = $3,
            ready_at = CASE WHEN $3 = 'ready_for_delivery' THEN $4 ELSE ready_at END,
            delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END
        WHERE id = $1 AND status = $2
    `, orderID, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("update order %q status: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %q no longer in status %q", orderID, from)
	}
	return nil
}

// SetOrderCourier - record the courier accepted for the order.
func (r *dispatchTx) SetOrderCourier(ctx context.Context, orderID, courierID string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders SET courier_id = $2 WHERE id = $1
    `, orderID, courierID)
	if err != nil {
		return fmt.Errorf("set order %q courier: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %q not found", orderID)
	}
	return nil
}

// AppendHistory - append one order status history row.
func (r *dispatchTx) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO order_status_history (order_id, status, note, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, h.OrderID, string(h.Status), h.Note, h.CreatedAt).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("append history for order %q: %w", h.OrderID, err)
	}
	return nil
}

// GetOrder - read one order without locking.
func (r *DispatchRepo) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %q: %w", orderID, err)
	}
	return o, nil
}

// History - read the order's status trail in append order.
func (r *DispatchRepo) History(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, order_id, status, note, created_at
        FROM order_status_history
        WHERE order_id = $1
        ORDER BY id
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %q history: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.OrderStatusHistory
	for rows.Next() {
		var h domain.OrderStatusHistory
		var status string
		if err := rows.Scan(&h.ID, &h.OrderID, &status, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.Status = domain.OrderStatus(status)
		out = append(out, h)
	}
	return out, rows.Err()
}

type orderRow interface {
	Scan(dest ...any) error
}

func scanOrder(row orderRow) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &status, &o.StoreID, &o.CustomerID, &o.CourierID,
		&o.Total, &o.DeliveryFee, &o.Tax, &o.ServiceFee, &o.CommissionBps, &o.Currency,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Dropoff.Lat, &o.Dropoff.Lng, &o.PreferredCouriers,
		&o.CreatedAt, &o.ReadyAt, &o.EstimatedDelivery, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
