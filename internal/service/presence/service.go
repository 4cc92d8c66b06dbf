// Package presence tracks courier availability through location heartbeats.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

type locationIndex interface {
	Update(ctx context.Context, loc domain.CourierLocation) error
	Remove(ctx context.Context, courierID string) error
}

type counter interface {
	Inc()
}

// Service validates heartbeats and keeps the geo index current.
type Service struct {
	index            locationIndex
	operationTimeout time.Duration
	heartbeats       counter
	now              func() time.Time
}

// NewService creates and configures a presence Service. heartbeats may be nil.
func NewService(index locationIndex, timeout time.Duration, heartbeats counter) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		index:            index,
		operationTimeout: timeout,
		heartbeats:       heartbeats,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Heartbeat records the courier's current position and availability.
func (s *Service) Heartbeat(ctx context.Context, loc domain.CourierLocation) error {
	if strings.TrimSpace(loc.CourierID) == "" {
		return fmt.Errorf("%w: empty courier id", apperr.Invalid)
	}
	if !loc.ValidCoordinates() {
		return fmt.Errorf("%w: coordinates out of range", apperr.Invalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	loc.UpdatedAt = s.now()
	if err := s.index.Update(ctx, loc); err != nil {
		return err
	}
	if s.heartbeats != nil {
		s.heartbeats.Inc()
	}
	return nil
}

// Offline removes the courier from matching entirely.
func (s *Service) Offline(ctx context.Context, courierID string) error {
	if strings.TrimSpace(courierID) == "" {
		return fmt.Errorf("%w: empty courier id", apperr.Invalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.index.Remove(ctx, courierID)
}
