package storage

import (
	"context"

	"ArticleRelay/internal/domain"
)

// Stats rolls up feed and entry counts for the stats command and the
// run preamble.
func (s *Store) Stats(ctx context.Context) (domain.FeedStats, error) {
	stats := domain.FeedStats{EntriesByStage: map[domain.Stage]int{}}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_paywalled = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(paywall_hits), 0)
		FROM feeds`)
	if err := row.Scan(&stats.TotalFeeds, &stats.ActiveFeeds,
		&stats.PaywalledFeeds, &stats.TotalPaywallHits); err != nil {
		return domain.FeedStats{}, storageErr("stats", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM processed_entries GROUP BY stage`)
	if err != nil {
		return domain.FeedStats{}, storageErr("stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stage string
			count int
		)
		if err := rows.Scan(&stage, &count); err != nil {
			return domain.FeedStats{}, storageErr("stats", err)
		}
		stats.EntriesByStage[domain.Stage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.FeedStats{}, storageErr("stats", err)
	}

	return stats, nil
}
