package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"pinbot/internal/domain"
)

type SyncWorkerConfig struct {
	Interval     time.Duration // time between passes (default 60s)
	InitialDelay time.Duration // wait before the first pass; zero starts immediately
	Concurrency  int           // user cycles in flight at once (default 4)
}

// SyncWorker drives the sync service over every user with pending
// orders on a fixed interval. Users share no state, so their cycles run
// concurrently up to the configured cap; one user's fault never reaches
// another.
type SyncWorker struct {
	cfg     SyncWorkerConfig
	service *SyncService
	store   domain.OrderStore
	logger  *zap.Logger
	started time.Time

	mu   sync.Mutex
	last *domain.SyncStats
}

func NewSyncWorker(cfg SyncWorkerConfig, service *SyncService, store domain.OrderStore, logger *zap.Logger) *SyncWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &SyncWorker{
		cfg:     cfg,
		service: service,
		store:   store,
		logger:  logger,
		started: time.Now(),
	}
}

// Run blocks until ctx is done, executing one pass per interval.
func (w *SyncWorker) Run(ctx context.Context) {
	if w.cfg.InitialDelay > 0 {
		w.logger.Info("Sync worker waiting before first pass",
			zap.Duration("delay", w.cfg.InitialDelay))
		select {
		case <-time.After(w.cfg.InitialDelay):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("Sync worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("concurrency", w.cfg.Concurrency))

	for {
		w.RunOnce(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			w.logger.Info("Sync worker stopped")
			return
		}
	}
}

// RunOnce executes a single pass over every user with pending orders
// and publishes the resulting counters for the status endpoint.
func (w *SyncWorker) RunOnce(ctx context.Context) domain.SyncStats {
	stats := domain.SyncStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := w.logger.With(zap.String("run_id", stats.RunID))

	users, err := w.store.ListUsersWithPending(ctx)
	if err != nil {
		log.Error("Failed to list users with pending orders", zap.Error(err))
		stats.ElapsedMs = time.Since(stats.StartedAt).Milliseconds()
		w.publish(stats)
		return stats
	}
	stats.Users = len(users)
	if len(users) == 0 {
		stats.ElapsedMs = time.Since(stats.StartedAt).Milliseconds()
		w.publish(stats)
		return stats
	}

	log.Info("Sync pass started", zap.Int("users", len(users)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	var mu sync.Mutex

	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			start := time.Now()
			log.Info("User sync started", zap.Int64("user_id", userID))

			res, err := w.service.SyncUser(gctx, userID)

			elapsed := time.Since(start)
			if err != nil {
				log.Error("User sync aborted",
					zap.Int64("user_id", userID),
					zap.Duration("elapsed", elapsed),
					zap.Error(err))
			} else {
				log.Info("User sync finished",
					zap.Int64("user_id", userID),
					zap.Duration("elapsed", elapsed),
					zap.Int("checked", res.Checked),
					zap.Int("repositioned", res.Repositioned),
					zap.Int("resolved", res.Resolved),
					zap.Int("skipped", res.Skipped),
					zap.Int("failed", res.Failed))
			}

			mu.Lock()
			stats.Add(res)
			mu.Unlock()

			// User faults stay with the user; never cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	stats.ElapsedMs = time.Since(stats.StartedAt).Milliseconds()
	log.Info("Sync pass complete",
		zap.Int("users", stats.Users),
		zap.Int("orders_checked", stats.OrdersChecked),
		zap.Int("repositioned", stats.Repositioned),
		zap.Int("resolved", stats.Resolved),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", stats.Elapsed()))

	w.publish(stats)
	return stats
}

func (w *SyncWorker) publish(stats domain.SyncStats) {
	w.mu.Lock()
	w.last = &stats
	w.mu.Unlock()
}

// Stats returns the snapshot of the most recent pass, or nil before the
// first one completes.
func (w *SyncWorker) Stats() *domain.SyncStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Uptime reports how long the worker has existed.
func (w *SyncWorker) Uptime() time.Duration {
	return time.Since(w.started)
}
