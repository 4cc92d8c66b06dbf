package repository

import (
	"context"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const assignmentColumns = `
    id, order_id, courier_id, state, assigned_at, expires_at, accepted_at,
    pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
    distance_km, est_travel_secs, est_earning`

// ActiveAssignmentForUpdate returns the order's single non-terminal
// assignment, locked; nil if the order has none.
func (r *dispatchTx) ActiveAssignmentForUpdate(ctx context.Context, orderID string) (*domain.Assignment, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT`+assignmentColumns+`
        FROM assignments
        WHERE order_id = $1 AND state IN ('assigned', 'accepted', 'in_transit')
        FOR UPDATE
    `, orderID)

	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("active assignment for order %q: %w", orderID, err)
	}
	return a, nil
}

// AssignmentForUpdate loads an assignment by id and locks its row.
func (r *dispatchTx) AssignmentForUpdate(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT`+assignmentColumns+`
        FROM assignments
        WHERE id = $1
        FOR UPDATE
    `, assignmentID)

	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment %q for update: %w", assignmentID, err)
	}
	return a, nil
}

// InsertAssignment - insert a fresh assignment row. The partial unique index
// on (order_id) rejects a second active row for the same order.
func (r *dispatchTx) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO assignments (
            id, order_id, courier_id, state, assigned_at, expires_at,
            pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            distance_km, est_travel_secs, est_earning
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `,
		a.ID, a.OrderID, a.CourierID, string(a.State), a.AssignedAt, a.ExpiresAt,
		a.Pickup.Lat, a.Pickup.Lng, a.Dropoff.Lat, a.Dropoff.Lng,
		a.DistanceKm, int64(a.EstimatedTravel.Seconds()), a.EstimatedEarn,
	)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: order %q already has an active assignment", apperr.Conflict, a.OrderID)
		}
		return fmt.Errorf("insert assignment %q: %w", a.ID, err)
	}
	return nil
}

// UpdateAssignmentState applies from->to and reports whether the row was
// still in from.
func (r *dispatchTx) UpdateAssignmentState(ctx context.Context, assignmentID string, from, to domain.AssignmentState) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE assignments SET state = $3 WHERE id = $1 AND state = $2
    `, assignmentID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update assignment %q state: %w", assignmentID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetAssignmentAccepted - stamp the moment the courier accepted.
func (r *dispatchTx) SetAssignmentAccepted(ctx context.Context, assignmentID string, at time.Time) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE assignments SET accepted_at = $2 WHERE id = $1
    `, assignmentID, at)
	if err != nil {
		return fmt.Errorf("set assignment %q accepted: %w", assignmentID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("assignment %q not found", assignmentID)
	}
	return nil
}

// TriedCourierIDs lists couriers that already hold an assignment row for the
// order.
func (r *dispatchTx) TriedCourierIDs(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT DISTINCT courier_id FROM assignments WHERE order_id = $1
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("tried couriers for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan courier id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CourierHasActiveAssignment reports whether the courier is already working
// an order.
func (r *dispatchTx) CourierHasActiveAssignment(ctx context.Context, courierID string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM assignments
            WHERE courier_id = $1 AND state IN ('assigned', 'accepted', 'in_transit')
        )
    `, courierID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("courier %q active assignment: %w", courierID, err)
	}
	return exists, nil
}

// FirstAssignedAt is the timestamp of the order's earliest assignment.
func (r *dispatchTx) FirstAssignedAt(ctx context.Context, orderID string) (*time.Time, error) {
	var at *time.Time
	err := r.tx.QueryRow(ctx, `
        SELECT MIN(assigned_at) FROM assignments WHERE order_id = $1
    `, orderID).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("first assigned at for order %q: %w", orderID, err)
	}
	return at, nil
}

// DueTimeouts returns ids of assignments whose response window has elapsed.
// Runs outside a transaction; each id is then handled in its own one.
func (r *DispatchRepo) DueTimeouts(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM assignments
        WHERE state = 'assigned' AND expires_at <= $1
        ORDER BY expires_at
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due timeouts: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// StaleReadyOrders returns orders that have been ready since before cutoff
// with no courier accepted and no flag raised yet.
func (r *DispatchRepo) StaleReadyOrders(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM orders o
        WHERE o.status = 'ready_for_delivery'
          AND o.ready_at <= $1
          AND o.not_accepted_flagged_at IS NULL
          AND NOT EXISTS (
              SELECT 1 FROM assignments a
              WHERE a.order_id = o.id AND a.state IN ('accepted', 'in_transit')
          )
        ORDER BY o.ready_at
        LIMIT $2
    `, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("stale ready orders: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// MarkNotAcceptedFlagged records that the late-acceptance flag was raised,
// so the sweep does not raise it twice.
func (r *DispatchRepo) MarkNotAcceptedFlagged(ctx context.Context, orderID string, at time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE orders SET not_accepted_flagged_at = $2
        WHERE id = $1 AND not_accepted_flagged_at IS NULL
    `, orderID, at)
	if err != nil {
		return false, fmt.Errorf("flag order %q not accepted: %w", orderID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// RedispatchableOrders returns ready orders with no live assignment at all,
// e.g. after a worker crash between marking a timeout and re-dispatching.
func (r *DispatchRepo) RedispatchableOrders(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM orders o
        WHERE o.status = 'ready_for_delivery'
          AND NOT EXISTS (
              SELECT 1 FROM assignments a
              WHERE a.order_id = o.id AND a.state IN ('assigned', 'accepted', 'in_transit')
          )
        ORDER BY o.ready_at
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("redispatchable orders: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectIDs(rows idRows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAssignment(row orderRow) (*domain.Assignment, error) {
	var a domain.Assignment
	var state string
	var travelSecs int64
	err := row.Scan(
		&a.ID, &a.OrderID, &a.CourierID, &state, &a.AssignedAt, &a.ExpiresAt, &a.AcceptedAt,
		&a.Pickup.Lat, &a.Pickup.Lng, &a.Dropoff.Lat, &a.Dropoff.Lng,
		&a.DistanceKm, &travelSecs, &a.EstimatedEarn,
	)
	if err != nil {
		return nil, err
	}
	a.State = domain.AssignmentState(state)
	a.EstimatedTravel = time.Duration(travelSecs) * time.Second
	return &a, nil
}
