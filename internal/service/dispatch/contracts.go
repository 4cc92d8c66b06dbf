package dispatch

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geoindex"
	"service-dispatch/internal/ports/dispatchtx"
)

type dispatchRepository interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

type courierFinder interface {
	Nearest(ctx context.Context, origin domain.Point, q geoindex.Query) ([]geoindex.Candidate, error)
}

type courierNotifier interface {
	NotifyAssignment(ctx context.Context, e domain.AssignmentCreatedEvent) error
}

type counter interface {
	Inc()
}
