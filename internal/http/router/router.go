package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/logx"
)

// Handlers bundles the per-resource HTTP handlers the router mounts.
type Handlers struct {
	Base        *handlers.Handlers
	Orders      *handlers.OrderHandler
	Assignments *handlers.AssignmentHandler
	Couriers    *handlers.CourierHandler
	Ledger      *handlers.LedgerHandler
	Pprof       http.Handler
}

// New constructs a chi-based http.Handler with base middleware and routes.
// The rate limiter guards only the courier heartbeat endpoints; couriers on
// the move post locations far more often than anyone hits the rest of the API.
func New(logger logx.Logger, h Handlers, rl *ratelimit.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Observability(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))

	r.Get("/ping", h.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.Base.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())
	if h.Pprof != nil {
		r.Handle("/debug/pprof/*", h.Pprof)
	}

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Orders.Create)
		r.Get("/{id}", h.Orders.Get)
		r.Post("/{id}/status", h.Orders.Transition)
		r.Post("/{id}/dispatch", h.Assignments.Dispatch)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/{id}/accept", h.Assignments.Accept)
		r.Post("/{id}/reject", h.Assignments.Reject)
	})

	r.Route("/couriers", func(r chi.Router) {
		if rl != nil {
			r.Use(rl.Handler())
		}
		r.Put("/{id}/location", h.Couriers.Heartbeat)
		r.Delete("/{id}/location", h.Couriers.Offline)
	})

	r.Route("/balances/{kind}/{id}", func(r chi.Router) {
		r.Get("/", h.Ledger.Balance)
		r.Get("/transactions", h.Ledger.Transactions)
		r.Post("/withdraw", h.Ledger.Withdraw)
	})

	r.NotFound(http.HandlerFunc(h.Base.NotFound))

	return r
}
