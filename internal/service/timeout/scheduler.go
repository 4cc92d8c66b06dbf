package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

// sweepBatch bounds how many rows one sweep pass picks up.
const sweepBatch = 100

// Config holds the recovery deadlines.
type Config struct {
	// RedispatchBudget is how long automatic redispatch keeps trying,
	// measured from the order's first assignment.
	RedispatchBudget time.Duration
	// ConfirmationWindow is how long an order may sit ready for delivery
	// without an accepted courier before it gets flagged.
	ConfirmationWindow time.Duration
}

// Counters are the scheduler's metrics hooks; any field may be nil.
type Counters struct {
	Timeouts     counter
	Redispatches counter
	Escalations  counter
}

// Scheduler retires expired offers and recovers orders the happy path lost.
// All deadlines live in storage, so a restarted worker picks up exactly where
// the previous one stopped.
type Scheduler struct {
	repo       timeoutRepository
	dispatcher redispatcher
	signals    signalPublisher
	cfg        Config
	counters   Counters
	logger     logx.Logger
	now        func() time.Time
}

// NewScheduler - creates a new timeout Scheduler.
func NewScheduler(repo timeoutRepository, dispatcher redispatcher, signals signalPublisher, cfg Config, counters Counters, logger logx.Logger) *Scheduler {
	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		signals:    signals,
		cfg:        cfg,
		counters:   counters,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleTimeout retires one expired offer and re-dispatches the order unless
// the redispatch budget ran out, in which case operations staff is signalled.
// Safe to call twice for the same assignment: the state CAS makes the second
// call a no-op.
func (s *Scheduler) HandleTimeout(ctx context.Context, assignmentID string) error {
	now := s.now()

	var expired *domain.AssignmentExpiredEvent
	var attempts int
	var firstAssigned *time.Time

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		a, err := tx.AssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: assignment %q", apperr.NotFound, assignmentID)
		}
		if a.State != domain.AssignmentAssigned || !a.Expired(now) {
			return nil
		}

		ok, err := tx.UpdateAssignmentState(ctx, a.ID, domain.AssignmentAssigned, domain.AssignmentTimedOut)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		tried, err := tx.TriedCourierIDs(ctx, a.OrderID)
		if err != nil {
			return err
		}
		attempts = len(tried)

		firstAssigned, err = tx.FirstAssignedAt(ctx, a.OrderID)
		if err != nil {
			return err
		}

		expired = &domain.AssignmentExpiredEvent{
			AssignmentID: a.ID,
			OrderID:      a.OrderID,
			CourierID:    a.CourierID,
			OccurredAt:   now,
		}
		return nil
	})
	if err != nil || expired == nil {
		return err
	}

	inc(s.counters.Timeouts)
	s.logger.Info("assignment timed out",
		logx.String("event", "assignment_timed_out"),
		logx.String("order_id", expired.OrderID),
		logx.String("assignment_id", expired.AssignmentID),
		logx.String("courier_id", expired.CourierID),
	)
	s.publishExpired(ctx, *expired)

	if firstAssigned != nil && now.Sub(*firstAssigned) >= s.cfg.RedispatchBudget {
		return s.escalate(ctx, expired.OrderID, attempts, *firstAssigned, now)
	}

	return s.redispatch(ctx, expired.OrderID, []string{expired.CourierID})
}

// SweepTimeouts retires every offer whose response window has elapsed.
func (s *Scheduler) SweepTimeouts(ctx context.Context) error {
	due, err := s.repo.DueTimeouts(ctx, s.now(), sweepBatch)
	if err != nil {
		return err
	}
	for _, id := range due {
		if err := s.HandleTimeout(ctx, id); err != nil {
			s.logger.Error("timeout handling failed",
				logx.String("assignment_id", id),
				logx.Err(err),
			)
		}
	}
	return nil
}

// SweepUnassigned flags orders stuck ready past the confirmation window and
// re-dispatches ready orders that lost their offer without a follow-up.
func (s *Scheduler) SweepUnassigned(ctx context.Context) error {
	now := s.now()

	stale, err := s.repo.StaleReadyOrders(ctx, now.Add(-s.cfg.ConfirmationWindow), sweepBatch)
	if err != nil {
		return err
	}
	for _, orderID := range stale {
		flagged, err := s.repo.MarkNotAcceptedFlagged(ctx, orderID, now)
		if err != nil {
			s.logger.Error("flagging stale order failed",
				logx.String("order_id", orderID),
				logx.Err(err),
			)
			continue
		}
		if !flagged {
			continue
		}
		s.logger.Warn("order not accepted on time",
			logx.String("event", "order_not_accepted"),
			logx.String("order_id", orderID),
		)
		if s.signals != nil {
			err := s.signals.PublishOrderNotAccepted(ctx, domain.OrderNotAcceptedEvent{
				OrderID:    orderID,
				ReadySince: now.Add(-s.cfg.ConfirmationWindow),
				OccurredAt: now,
			})
			if err != nil {
				s.logger.Warn("publish not-accepted signal failed",
					logx.String("order_id", orderID),
					logx.Err(err),
				)
			}
		}
	}

	orphans, err := s.repo.RedispatchableOrders(ctx, sweepBatch)
	if err != nil {
		return err
	}
	for _, orderID := range orphans {
		if s.pastBudget(ctx, orderID, now) {
			continue
		}
		if err := s.redispatch(ctx, orderID, nil); err != nil {
			s.logger.Error("redispatch sweep failed",
				logx.String("order_id", orderID),
				logx.Err(err),
			)
		}
	}
	return nil
}

func (s *Scheduler) redispatch(ctx context.Context, orderID string, exclude []string) error {
	a, err := s.dispatcher.Dispatch(ctx, orderID, exclude)
	if err != nil {
		if errors.Is(err, apperr.NoAvailableCourier) || errors.Is(err, apperr.Conflict) {
			s.logger.Warn("redispatch found no courier",
				logx.String("order_id", orderID),
			)
			return nil
		}
		return err
	}

	inc(s.counters.Redispatches)
	s.logger.Info("order redispatched",
		logx.String("event", "order_redispatched"),
		logx.String("order_id", orderID),
		logx.String("assignment_id", a.ID),
		logx.String("courier_id", a.CourierID),
	)
	return nil
}

func (s *Scheduler) escalate(ctx context.Context, orderID string, attempts int, firstAssigned, now time.Time) error {
	inc(s.counters.Escalations)
	s.logger.Warn("manual assignment required",
		logx.String("event", "manual_assignment_required"),
		logx.String("order_id", orderID),
		logx.Int("attempts", attempts),
		logx.Time("first_assigned_at", firstAssigned),
	)
	if s.signals == nil {
		return nil
	}
	err := s.signals.PublishManualRequired(ctx, domain.ManualAssignmentRequiredEvent{
		OrderID:         orderID,
		Attempts:        attempts,
		FirstAssignedAt: firstAssigned,
		OccurredAt:      now,
	})
	if err != nil {
		s.logger.Warn("publish manual-assignment signal failed",
			logx.String("order_id", orderID),
			logx.Err(err),
		)
	}
	return nil
}

// pastBudget reports whether automatic redispatch already used up its budget.
// Orders that never got a single offer are always within budget.
func (s *Scheduler) pastBudget(ctx context.Context, orderID string, now time.Time) bool {
	var first *time.Time
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		first, err = tx.FirstAssignedAt(ctx, orderID)
		return err
	})
	if err != nil {
		s.logger.Error("budget check failed",
			logx.String("order_id", orderID),
			logx.Err(err),
		)
		return true
	}
	return first != nil && now.Sub(*first) >= s.cfg.RedispatchBudget
}

func (s *Scheduler) publishExpired(ctx context.Context, e domain.AssignmentExpiredEvent) {
	if s.signals == nil {
		return
	}
	if err := s.signals.PublishAssignmentExpired(ctx, e); err != nil {
		s.logger.Warn("publish expired signal failed",
			logx.String("assignment_id", e.AssignmentID),
			logx.Err(err),
		)
	}
}

func inc(c counter) {
	if c != nil {
		c.Inc()
	}
}
