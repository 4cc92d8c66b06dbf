package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimit    prometheus.Counter `name:"rate_limit_exceeded_total"`
	Dispatches   prometheus.Counter `name:"dispatch_attempts_total"`
	Timeouts     prometheus.Counter `name:"assignment_timeouts_total"`
	Redispatches prometheus.Counter `name:"redispatches_total"`
	Escalations  prometheus.Counter `name:"manual_escalations_total"`
	Settlements  prometheus.Counter `name:"settlements_total"`
	Heartbeats   prometheus.Counter `name:"courier_heartbeats_total"`
}

func newMetrics() metricsOut {
	return metricsOut{
		RateLimit:    register(metrics.NewRateLimitExceededTotal()),
		Dispatches:   register(metrics.NewDispatchAttemptsTotal()),
		Timeouts:     register(metrics.NewAssignmentTimeoutsTotal()),
		Redispatches: register(metrics.NewRedispatchesTotal()),
		Escalations:  register(metrics.NewManualEscalationsTotal()),
		Settlements:  register(metrics.NewSettlementsTotal()),
		Heartbeats:   register(metrics.NewCourierHeartbeatsTotal()),
	}
}

// register attaches the counter to the default registry. A test may build
// several containers in one process, so an already-registered collector is
// reused instead of panicking.
func register(c prometheus.Counter) prometheus.Counter {
	err := prometheus.DefaultRegisterer.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing
		}
	}
	return c
}
