package storage

import (
	"context"
	"database/sql"
	"time"
)

// RecordPaywallHit appends a hit and bumps the feed's counters in one
// transaction. Hits are append-only.
func (s *Store) RecordPaywallHit(ctx context.Context, feedID int64, articleURL string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, "record paywall hit", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO paywall_hits (feed_id, url, hit_at) VALUES (?, ?, ?)`,
			feedID, articleURL, now); err != nil {
			return storageErr("record paywall hit", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE feeds
			SET paywall_hits = paywall_hits + 1, last_paywall_hit = ?
			WHERE id = ?`, now, feedID); err != nil {
			return storageErr("record paywall hit", err)
		}
		return nil
	})
}

// RecentPaywallHits counts hits for a feed at or after the cutoff,
// giving the sliding-window view the health manager works from.
func (s *Store) RecentPaywallHits(ctx context.Context, feedID int64, since time.Time) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM paywall_hits WHERE feed_id = ? AND hit_at >= ?`,
		feedID, since.UTC())
	if err := row.Scan(&count); err != nil {
		return 0, storageErr("recent paywall hits", err)
	}
	return count, nil
}
