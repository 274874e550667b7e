package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one unit of scheduled work. It runs to completion even during
// shutdown; the context it receives is never cancelled.
type Job func(ctx context.Context)

// Scheduler fires a job on a fixed interval. Runs never overlap: the job is
// invoked synchronously from the scheduling loop, so a slow run delays the
// next tick instead of racing it.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger
}

// New creates a scheduler for one job
func New(name string, interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With("component", "scheduler", "job", name),
	}
}

// Run fires the job once immediately, then on every interval tick. On context
// cancellation it stops accepting ticks, lets the in-flight run finish, and
// returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.loop(ctx, ticker.C)
}

func (s *Scheduler) loop(ctx context.Context, ticks <-chan time.Time) {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticks:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	// The in-flight run is allowed to complete after shutdown begins
	s.job(context.WithoutCancel(ctx))
	s.logger.Debug("job finished", "duration", time.Since(start))
}
