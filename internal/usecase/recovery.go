package usecase

import (
	"context"
	"log/slog"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// Recovery finds entries that a previous run left mid-pipeline so the
// next run can resume them at their last completed stage.
type Recovery struct {
	repo   ports.Repository
	logger *slog.Logger
}

// NewRecovery wires the repository.
func NewRecovery(repo ports.Repository, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{repo: repo, logger: logger}
}

// Pending returns non-terminal entries oldest first, hydrated with
// their scrape snapshots.
func (r *Recovery) Pending(ctx context.Context) ([]domain.ProcessedEntry, error) {
	entries, err := r.repo.PendingEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		r.logger.Info("resuming interrupted entries", "count", len(entries))
	}
	return entries, nil
}
