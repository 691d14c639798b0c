package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/service"
)

// SweepRunner triggers the scheduler sweep on a fixed interval. The lock
// keeps concurrent workers from sweeping the same tick.
type SweepRunner struct {
	scheduler service.SchedulerService
	lock      queue.Lock
	interval  time.Duration
	logger    *slog.Logger
}

// NewSweepRunner creates a new sweep runner
func NewSweepRunner(scheduler service.SchedulerService, lock queue.Lock, interval time.Duration, logger *slog.Logger) *SweepRunner {
	return &SweepRunner{
		scheduler: scheduler,
		lock:      lock,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (r *SweepRunner) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.interval = time.Minute
	}
	r.logger.Info("scheduler started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			r.Tick(ctx)
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return
		}
	}
}

// Tick runs a single sweep if the lock is free
func (r *SweepRunner) Tick(ctx context.Context) {
	release, acquired, err := r.lock.TryAcquire(ctx)
	if err != nil {
		r.logger.Error("failed to acquire sweep lock", slog.String("error", err.Error()))
		return
	}
	if !acquired {
		r.logger.Debug("sweep skipped, lock held elsewhere")
		return
	}
	defer release()

	result, err := r.scheduler.Sweep(ctx)
	if err != nil {
		r.logger.Error("scheduler sweep failed", slog.String("error", err.Error()))
		return
	}

	if result.Total > 0 || result.Reaped > 0 {
		r.logger.Info("scheduler sweep",
			slog.Int("processed", result.Processed),
			slog.Int("total", result.Total),
			slog.Int("reaped", result.Reaped),
			slog.Any("errors", result.Errors),
		)
	}
}
