package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nulzo/generation-router/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retention deletes attempt logs older than a fixed age on a cron schedule.
type Retention struct {
	repo     store.Repository
	maxAge   time.Duration
	schedule string
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewRetention(repo store.Repository, maxAge time.Duration, schedule string, logger *zap.Logger) *Retention {
	return &Retention{
		repo:     repo,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Start schedules pruning. An empty schedule or a non-positive max age
// disables it.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" || r.maxAge <= 0 {
		r.logger.Info("Attempt log retention disabled")
		return nil
	}
	if r.running {
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("Attempt log retention scheduled",
		zap.String("schedule", r.schedule),
		zap.Duration("max_age", r.maxAge),
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

// Prune deletes everything older than the configured age once.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	return r.repo.Attempts().DeleteBefore(ctx, cutoff)
}

func (r *Retention) run(ctx context.Context) {
	started := time.Now()
	n, err := r.Prune(ctx)
	if err != nil {
		r.logger.Error("Attempt log pruning failed", zap.Error(err))
		return
	}
	r.logger.Info("Pruned attempt logs",
		zap.Int64("deleted", n),
		zap.Duration("took", time.Since(started)),
	)
}
