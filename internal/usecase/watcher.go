package usecase

import (
	"context"
	"log/slog"
	"time"

	"ArticleRelay/internal/ports"
)

// Watcher reruns the pipeline on the scheduler's cadence until the
// context is cancelled.
type Watcher struct {
	pipeline  *Pipeline
	scheduler ports.Scheduler
	logger    *slog.Logger
}

// NewWatcher binds a pipeline to a scheduler.
func NewWatcher(pipeline *Pipeline, scheduler ports.Scheduler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{pipeline: pipeline, scheduler: scheduler, logger: logger}
}

// Run blocks, executing pipeline runs on schedule, and stops cleanly
// when ctx ends. Errors inside a run are logged, not propagated; the
// watch loop outlives any single bad run.
func (w *Watcher) Run(ctx context.Context) error {
	err := w.scheduler.Start(ctx, func(t time.Time) {
		if _, err := w.pipeline.Run(ctx); err != nil {
			w.logger.Error("scheduled run failed", "started_at", t.Format(time.RFC3339), "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return w.scheduler.Stop(context.Background())
}
