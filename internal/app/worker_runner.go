package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/timeout"
	"service-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the event consumer and the recovery sweep loops
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

func workerRun(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
	logger logx.Logger,
	consumer *kafka.Consumer,
	producer *kafka.Producer,
	scheduler *timeout.Scheduler,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	defer closeWorker(pool, logger, consumer, producer)

	var wg sync.WaitGroup
	startSweepLoop(ctx, &wg, cfg.Dispatch.SweepInterval, logger, "timeout sweep", scheduler.SweepTimeouts)
	startSweepLoop(ctx, &wg, cfg.Dispatch.SweepInterval, logger, "unassigned sweep", scheduler.SweepUnassigned)

	logger.Info("service-dispatch-worker started")
	err := consumer.Run(ctx)
	wg.Wait()
	return err
}

// startSweepLoop runs fn on every tick until the context is cancelled.
// Each sweep logs and absorbs its own failure; a broken database round
// must not stop the ticker.
func startSweepLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	interval time.Duration,
	logger logx.Logger,
	name string,
	fn func(context.Context) error,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					logger.Error("sweep failed",
						logx.String("sweep", name),
						logx.Err(err),
					)
				}
			}
		}
	}()
}

func closeWorker(pool *pgxpool.Pool, logger logx.Logger, consumer *kafka.Consumer, producer *kafka.Producer) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", logx.Err(err))
	}
	if err := producer.Close(); err != nil {
		logger.Error("kafka producer close error", logx.Err(err))
	}
	if pool != nil {
		pool.Close()
	}
}
