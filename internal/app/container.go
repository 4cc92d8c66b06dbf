package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/geoindex"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/http/pprofserver"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/service/orderstate"
	"service-dispatch/internal/service/presence"
	"service-dispatch/internal/service/settlement"
	"service-dispatch/internal/service/timeout"
	"service-dispatch/internal/transport/kafka"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
	worker    bool
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// ForWorker registers the Kafka consumer and scheduler instead of the HTTP
// server.
func (b *ContainerBuilder) ForWorker() *ContainerBuilder {
	b.worker = true
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// build builds and returns a new dig container
func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerRedis(container); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := registerKafka(container, b.worker); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if !b.worker {
		if err := registerHTTP(container); err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
	}
	return container, nil
}

// MustBuildContainer builds the HTTP service container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().ForWorker().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		func() *log.Logger { return log.Default() },
		NewLogger,
		config.Load,
		newMetrics,
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerRedis(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) *redis.Client {
			return redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		},
		geoindex.New,
	)
}

func registerKafka(container *dig.Container, worker bool) error {
	providers := []any{
		func(cfg *config.Config) (*kafka.Producer, error) {
			return kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
				Status:  cfg.Kafka.StatusTopic,
				Signals: cfg.Kafka.SignalsTopic,
				Notify:  cfg.Kafka.NotifyTopic,
			})
		},
	}
	if worker {
		providers = append(providers,
			newEventHandler,
			func(cfg *config.Config, h kafka.HandleFunc, logger logx.Logger) (*kafka.Consumer, error) {
				return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.StatusTopic, h, logger)
			},
		)
	}
	return provideAll(container, providers...)
}

type dispatchDeps struct {
	dig.In

	Repo     *repository.DispatchRepo
	Index    *geoindex.Index
	Producer *kafka.Producer
	Cfg      *config.Config
	Timeout  time.Duration
	Logger   logx.Logger
	Attempts prometheus.Counter `name:"dispatch_attempts_total"`
}

type schedulerDeps struct {
	dig.In

	Repo         *repository.DispatchRepo
	Engine       *dispatch.Engine
	Producer     *kafka.Producer
	Cfg          *config.Config
	Logger       logx.Logger
	Timeouts     prometheus.Counter `name:"assignment_timeouts_total"`
	Redispatches prometheus.Counter `name:"redispatches_total"`
	Escalations  prometheus.Counter `name:"manual_escalations_total"`
}

type settlementDeps struct {
	dig.In

	Repo        *repository.LedgerRepo
	Timeout     time.Duration
	Logger      logx.Logger
	Settlements prometheus.Counter `name:"settlements_total"`
}

type presenceDeps struct {
	dig.In

	Index      *geoindex.Index
	Timeout    time.Duration
	Heartbeats prometheus.Counter `name:"courier_heartbeats_total"`
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewDispatchRepo,
		repository.NewLedgerRepo,
		func() time.Duration { return 3 * time.Second },
		func(repo *repository.DispatchRepo, producer *kafka.Producer, timeout time.Duration, logger logx.Logger) *orderstate.Service {
			return orderstate.NewService(repo, producer, timeout, logger)
		},
		func(d dispatchDeps) *dispatch.Engine {
			return dispatch.NewEngine(d.Repo, d.Index, d.Producer, dispatch.Config{
				ResponseWindow:     d.Cfg.Dispatch.ResponseWindow,
				StalenessThreshold: d.Cfg.Dispatch.StalenessThreshold,
				SearchRadiusKm:     d.Cfg.Dispatch.SearchRadiusKm,
				CandidateLimit:     d.Cfg.Dispatch.CandidateLimit,
			}, d.Timeout, d.Logger, d.Attempts)
		},
		func(d schedulerDeps) *timeout.Scheduler {
			return timeout.NewScheduler(d.Repo, d.Engine, d.Producer, timeout.Config{
				RedispatchBudget:   d.Cfg.Dispatch.RedispatchBudget,
				ConfirmationWindow: d.Cfg.Dispatch.ConfirmationWindow,
			}, timeout.Counters{
				Timeouts:     d.Timeouts,
				Redispatches: d.Redispatches,
				Escalations:  d.Escalations,
			}, d.Logger)
		},
		func(d settlementDeps) *settlement.Listener {
			return settlement.NewListener(d.Repo, d.Timeout, d.Logger, d.Settlements)
		},
		func(repo *repository.LedgerRepo, timeout time.Duration, logger logx.Logger) *settlement.Ledger {
			return settlement.NewLedger(repo, timeout, logger)
		},
		func(d presenceDeps) *presence.Service {
			return presence.NewService(d.Index, d.Timeout, d.Heartbeats)
		},
		func(state *orderstate.Service, engine *dispatch.Engine, listener *settlement.Listener) *orders.Processor {
			return orders.NewProcessor(state, engine, listener)
		},
	)
}

type routerDeps struct {
	dig.In

	Logger      logx.Logger
	Base        *handlers.Handlers
	Orders      *handlers.OrderHandler
	Assignments *handlers.AssignmentHandler
	Couriers    *handlers.CourierHandler
	Ledger      *handlers.LedgerHandler
	RateLimit   *ratelimit.Middleware
	Config      *config.Config
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewOrderUsecase,
		handlers.NewOrderHandler,
		handlers.NewAssignmentUsecase,
		handlers.NewAssignmentHandler,
		handlers.NewPresenceUsecase,
		handlers.NewCourierHandler,
		handlers.NewLedgerUsecase,
		handlers.NewLedgerHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		func(d routerDeps) http.Handler {
			return router.New(d.Logger, router.Handlers{
				Base:        d.Base,
				Orders:      d.Orders,
				Assignments: d.Assignments,
				Couriers:    d.Couriers,
				Ledger:      d.Ledger,
				Pprof: pprofserver.Handler(pprofserver.Config{
					User: d.Config.Pprof.User,
					Pass: d.Config.Pprof.Pass,
				}),
			}, d.RateLimit)
		},
		serverProvider,
	)
}
