package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewDispatchAttemptsTotal returns a Prometheus counter for the number of courier assignments created
func NewDispatchAttemptsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Total number of courier assignments created by the dispatch engine",
	})
}

// NewAssignmentTimeoutsTotal returns a Prometheus counter for the number of assignments expired without a courier response
func NewAssignmentTimeoutsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_timeouts_total",
		Help: "Total number of assignments that expired without a courier response",
	})
}

// NewRedispatchesTotal returns a Prometheus counter for the number of automatic redispatch attempts after a timeout or rejection
func NewRedispatchesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redispatches_total",
		Help: "Total number of automatic redispatch attempts after a timeout or rejection",
	})
}

// NewManualEscalationsTotal returns a Prometheus counter for the number of orders escalated to manual assignment
func NewManualEscalationsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manual_escalations_total",
		Help: "Total number of orders escalated to manual assignment",
	})
}

// NewSettlementsTotal returns a Prometheus counter for the number of ledger settlements applied
func NewSettlementsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Total number of ledger settlements applied",
	})
}

// NewCourierHeartbeatsTotal returns a Prometheus counter for the number of courier location heartbeats accepted
func NewCourierHeartbeatsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_heartbeats_total",
		Help: "Total number of courier location heartbeats accepted",
	})
}
