// Command worker runs one queue end to end: the Redis-backed store, the
// throttled maintenance lock, an optional Postgres event log, the
// worker runloop, and the admin HTTP surface — wired together the way
// cmd/api wired the original job-queue server.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sirclappington/enq/internal/adminapi"
	cfgpkg "github.com/sirclappington/enq/internal/config"
	"github.com/sirclappington/enq/internal/domain"
	"github.com/sirclappington/enq/internal/eventlog"
	"github.com/sirclappington/enq/internal/lock"
	"github.com/sirclappington/enq/internal/queue"
	"github.com/sirclappington/enq/internal/store/redisstore"
)

// statsAdapter translates queue.Stats into adminapi.Stats so a generic
// *queue.Queue[T] can satisfy adminapi.QueueHandle, which must stay
// non-generic to front queues of differing payload types in one
// process.
type statsAdapter[T any] struct{ q *queue.Queue[T] }

func (a statsAdapter[T]) Stats(ctx context.Context) (adminapi.Stats, error) {
	s, err := a.q.Stats(ctx)
	if err != nil {
		return adminapi.Stats{}, err
	}
	return adminapi.Stats{
		Ready: s.Ready, InFlight: s.InFlight, Dead: s.Dead,
		Enqueued: s.Enqueued, Dequeued: s.Dequeued, Completed: s.Completed,
		Abandoned: s.Abandoned, WorkerErrors: s.WorkerErrors, WorkItemTimeouts: s.WorkItemTimeouts,
	}, nil
}

func (a statsAdapter[T]) DeleteQueue(ctx context.Context) error { return a.q.DeleteQueue(ctx) }

func main() {
	cfg := cfgpkg.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	st := redisstore.New(rdb)
	lockProvider := lock.NewRedisProvider(rdb)

	behaviors := []queue.Behavior{}
	if cfg.EventLogDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.EventLogDSN)
		if err != nil {
			logger.Fatal("connect event log database", zap.Error(err))
		}
		defer pool.Close()
		behaviors = append(behaviors, eventlog.Behavior{
			QueueName: "jobs",
			Store:     eventlog.New(pool),
			Logger:    logger,
		})
	}

	q, err := queue.New[domain.Job](st, queue.Config{
		QueueName:                 "jobs",
		DequeueTimeout:            cfg.DequeueTimeout,
		WorkItemTimeout:           cfg.WorkItemTimeout,
		Retries:                   &cfg.Retries,
		RetryDelay:                &cfg.RetryDelay,
		MaintenanceAcquireTimeout: cfg.MaintenanceAcquireTimeout,
		Behaviors:                 behaviors,
	}, queue.WithLogger[domain.Job](logger), queue.WithLockProvider[domain.Job](lockProvider))
	if err != nil {
		logger.Fatal("construct queue", zap.Error(err))
	}
	defer q.Dispose()

	reg := adminapi.NewRegistry(logger)
	reg.Register("jobs", statsAdapter[domain.Job]{q: q})

	handler := func(ctx context.Context, entry *queue.QueueEntry[domain.Job]) error {
		logger.Info("processing job",
			zap.String("id", entry.ID), zap.String("type", entry.Payload.Type), zap.Int("attempts", entry.Attempts))
		return nil
	}
	if err := q.StartWorking(ctx, handler, true); err != nil {
		logger.Fatal("start worker", zap.Error(err))
	}

	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminapi.Router(reg)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin http listening", zap.String("addr", cfg.AdminAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return adminServer.Shutdown(context.Background())
	})

	<-ctx.Done()
	q.StopWorking()
	if err := g.Wait(); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
