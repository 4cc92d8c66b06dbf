package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/geoindex"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

// avgSpeedKmh is the planning speed for travel-time estimates. Routing
// services are out of scope; straight-line distance over a flat city speed
// is good enough for offer sizing.
const avgSpeedKmh = 18.0

// Config holds the matching knobs of the engine.
type Config struct {
	ResponseWindow     time.Duration
	StalenessThreshold time.Duration
	SearchRadiusKm     float64
	CandidateLimit     int
}

// Engine matches ready orders to nearby couriers and drives the courier's
// accept/reject responses.
type Engine struct {
	repo             dispatchRepository
	finder           courierFinder
	notifier         courierNotifier
	cfg              Config
	operationTimeout time.Duration
	logger           logx.Logger
	attempts         counter
	now              func() time.Time
	newID            func() string
}

// NewEngine - creates a new dispatch Engine. attempts may be nil.
func NewEngine(repo dispatchRepository, finder courierFinder, notifier courierNotifier, cfg Config, timeout time.Duration, logger logx.Logger, attempts counter) *Engine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Engine{
		repo:             repo,
		finder:           finder,
		notifier:         notifier,
		cfg:              cfg,
		operationTimeout: timeout,
		logger:           logger,
		attempts:         attempts,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.operationTimeout)
}

// Dispatch offers the order to the best eligible courier. Calling it again
// while an offer is live returns the live assignment unchanged, so redelivered
// events cannot double-assign.
func (e *Engine) Dispatch(ctx context.Context, orderID string, exclude []string) (*domain.Assignment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", apperr.Invalid)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	now := e.now()
	var result *domain.Assignment
	var fresh bool

	err := e.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: order %q", apperr.NotFound, orderID)
		}
		if o.Status != domain.OrderReadyForDelivery {
			return fmt.Errorf("%w: order %q is %s, not ready for delivery", apperr.Conflict, orderID, o.Status)
		}

		active, err := tx.ActiveAssignmentForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if active != nil {
			result = active
			return nil
		}

		tried, err := tx.TriedCourierIDs(ctx, orderID)
		if err != nil {
			return err
		}

		candidates, err := e.finder.Nearest(ctx, o.Pickup, geoindex.Query{
			RadiusKm:  e.cfg.SearchRadiusKm,
			MaxAge:    e.cfg.StalenessThreshold,
			Limit:     e.cfg.CandidateLimit,
			Exclude:   union(exclude, tried),
			Preferred: o.PreferredCouriers,
		})
		if err != nil {
			return err
		}

		for _, c := range candidates {
			busy, err := tx.CourierHasActiveAssignment(ctx, c.CourierID)
			if err != nil {
				return err
			}
			if busy {
				continue
			}

			a := e.buildAssignment(o, c, now)
			if err := tx.InsertAssignment(ctx, a); err != nil {
				return err
			}
			result = a
			fresh = true
			return nil
		}

		return fmt.Errorf("%w: order %q", apperr.NoAvailableCourier, orderID)
	})
	if err != nil {
		return nil, err
	}
	if !fresh {
		return result, nil
	}

	if e.attempts != nil {
		e.attempts.Inc()
	}
	e.logger.Info("courier dispatched",
		logx.String("event", "courier_dispatched"),
		logx.String("order_id", orderID),
		logx.String("assignment_id", result.ID),
		logx.String("courier_id", result.CourierID),
		logx.Float64("distance_km", result.DistanceKm),
		logx.Time("expires_at", result.ExpiresAt),
	)

	e.notify(ctx, result)

	return result, nil
}

// Accept is the courier taking the offer. Once the response window has
// elapsed the offer is gone even if no sweep retired it yet.
func (e *Engine) Accept(ctx context.Context, assignmentID, courierID string) (*domain.Assignment, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	now := e.now()
	var result *domain.Assignment

	err := e.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		a, err := tx.AssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: assignment %q", apperr.NotFound, assignmentID)
		}
		if a.CourierID != courierID {
			return fmt.Errorf("%w: assignment %q belongs to another courier", apperr.Conflict, assignmentID)
		}
		if a.State != domain.AssignmentAssigned {
			return fmt.Errorf("%w: assignment %q is %s", apperr.AssignmentExpiredOrTaken, assignmentID, a.State)
		}
		if a.Expired(now) {
			if _, err := tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentTimedOut); err != nil {
				return err
			}
			return fmt.Errorf("%w: assignment %q expired at %s", apperr.AssignmentExpiredOrTaken, assignmentID, a.ExpiresAt)
		}

		ok, err := tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: assignment %q", apperr.AssignmentExpiredOrTaken, assignmentID)
		}
		if err := tx.SetAssignmentAccepted(ctx, a.ID, now); err != nil {
			return err
		}
		if err := tx.SetOrderCourier(ctx, a.OrderID, a.CourierID); err != nil {
			return err
		}

		a.State = domain.AssignmentAccepted
		a.AcceptedAt = &now
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("assignment accepted",
		logx.String("event", "assignment_accepted"),
		logx.String("order_id", result.OrderID),
		logx.String("assignment_id", result.ID),
		logx.String("courier_id", result.CourierID),
	)

	return result, nil
}

// Reject retires the courier's offer and immediately re-dispatches the order
// to the next candidate, excluding the rejecting courier. The reason is
// recorded for the operations trail only.
func (e *Engine) Reject(ctx context.Context, assignmentID, courierID, reason string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var orderID string

	err := e.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		a, err := tx.AssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: assignment %q", apperr.NotFound, assignmentID)
		}
		if a.CourierID != courierID {
			return fmt.Errorf("%w: assignment %q belongs to another courier", apperr.Conflict, assignmentID)
		}
		if a.State != domain.AssignmentAssigned {
			return fmt.Errorf("%w: assignment %q is %s", apperr.AssignmentExpiredOrTaken, assignmentID, a.State)
		}

		ok, err := tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentRejected)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: assignment %q", apperr.AssignmentExpiredOrTaken, assignmentID)
		}

		orderID = a.OrderID
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("assignment rejected",
		logx.String("event", "assignment_rejected"),
		logx.String("order_id", orderID),
		logx.String("assignment_id", assignmentID),
		logx.String("courier_id", courierID),
		logx.String("reason", reason),
	)

	if _, err := e.Dispatch(ctx, orderID, []string{courierID}); err != nil {
		if errors.Is(err, apperr.NoAvailableCourier) {
			e.logger.Warn("no courier available after rejection",
				logx.String("order_id", orderID),
			)
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) buildAssignment(o *domain.Order, c geoindex.Candidate, now time.Time) *domain.Assignment {
	tripKm := c.DistanceKm + geo.DistanceKm(o.Pickup, o.Dropoff)
	travel := time.Duration(tripKm / avgSpeedKmh * float64(time.Hour))

	return &domain.Assignment{
		ID:              e.newID(),
		OrderID:         o.ID,
		CourierID:       c.CourierID,
		State:           domain.AssignmentAssigned,
		AssignedAt:      now,
		ExpiresAt:       now.Add(e.cfg.ResponseWindow),
		Pickup:          o.Pickup,
		Dropoff:         o.Dropoff,
		DistanceKm:      c.DistanceKm,
		EstimatedTravel: travel.Round(time.Second),
		EstimatedEarn:   o.DeliveryFee,
	}
}

func (e *Engine) notify(ctx context.Context, a *domain.Assignment) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.NotifyAssignment(ctx, domain.AssignmentCreatedEvent{
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		CourierID:    a.CourierID,
		ExpiresAt:    a.ExpiresAt,
	})
	if err != nil {
		e.logger.Warn("courier notification failed",
			logx.String("assignment_id", a.ID),
			logx.String("courier_id", a.CourierID),
			logx.Err(err),
		)
	}
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
