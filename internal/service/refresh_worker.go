package service

import (
	"cicdassess/internal/cache"
	"cicdassess/internal/logger"
	"context"
	"time"
)

// Refresher regenerates the analysis
type Refresher interface {
	Refresh(ctx context.Context) (*RefreshOutcome, error)
}

// RefreshWorker drains the refresh queue, one job at a time
type RefreshWorker struct {
	queue     cache.RefreshQueue
	refresher Refresher
	log       *logger.Logger
	wait      time.Duration
	backoff   time.Duration
}

// NewRefreshWorker creates a worker polling the queue
func NewRefreshWorker(queue cache.RefreshQueue, refresher Refresher, log *logger.Logger) *RefreshWorker {
	return &RefreshWorker{
		queue:     queue,
		refresher: refresher,
		log:       log.With("component", "refresh_worker"),
		wait:      5 * time.Second,
		backoff:   time.Second,
	}
}

// Run processes jobs until ctx is cancelled
func (w *RefreshWorker) Run(ctx context.Context) {
	w.log.Info("refresh worker started")
	defer w.log.Info("refresh worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Next(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("refresh queue read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		start := time.Now()
		outcome, err := w.refresher.Refresh(ctx)
		if err != nil {
			w.log.Error("analysis refresh failed", "job", job.ID, "reason", job.Reason, "error", err)
			continue
		}
		if outcome.Empty {
			w.log.Info("analysis refresh skipped, no feedback", "job", job.ID)
			continue
		}
		w.log.Info("analysis refresh done", "job", job.ID, "reason", job.Reason, "duration", time.Since(start))
	}
}
