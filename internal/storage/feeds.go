package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ArticleRelay/internal/domain"
)

var feedColumns = []string{
	"id", "url", "name", "kind", "is_active", "is_paywalled",
	"paywall_hits", "last_paywall_hit", "last_checked", "created_at",
}

// AddFeed inserts a feed, returning its id. Duplicate URLs are an error.
func (s *Store) AddFeed(ctx context.Context, url, name string, kind domain.FeedKind) (int64, error) {
	if name == "" {
		name = url
	}
	if kind == "" {
		kind = domain.FeedKindRSS
	}

	query, args, err := s.sb.Insert("feeds").
		Columns("url", "name", "kind", "created_at").
		Values(url, name, string(kind), time.Now().UTC()).
		ToSql()
	if err != nil {
		return 0, storageErr("add feed", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr("add feed", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("add feed", err)
	}
	return id, nil
}

// RemoveFeed deletes the feed and its paywall hits. Processed entries
// survive with a detached feed id (permanent audit log).
func (s *Store) RemoveFeed(ctx context.Context, feedID int64) error {
	return s.withTx(ctx, "remove feed", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM paywall_hits WHERE feed_id = ?`, feedID); err != nil {
			return storageErr("remove feed", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, feedID); err != nil {
			return storageErr("remove feed", err)
		}
		return nil
	})
}

// ToggleFeed flips a feed's active flag and returns the new value.
func (s *Store) ToggleFeed(ctx context.Context, feedID int64) (bool, error) {
	var active bool
	err := s.withTx(ctx, "toggle feed", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT is_active FROM feeds WHERE id = ?`, feedID)
		if err := row.Scan(&active); err != nil {
			return storageErr("toggle feed", err)
		}
		active = !active
		if _, err := tx.ExecContext(ctx, `UPDATE feeds SET is_active = ? WHERE id = ?`, active, feedID); err != nil {
			return storageErr("toggle feed", err)
		}
		return nil
	})
	return active, err
}

// MarkFeedPaywalled flags the feed so future runs skip it. The feed
// stays listed; paywall counters are untouched.
func (s *Store) MarkFeedPaywalled(ctx context.Context, feedID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET is_paywalled = 1, is_active = 0 WHERE id = ?`, feedID)
	if err != nil {
		return storageErr("mark feed paywalled", err)
	}
	return nil
}

// TouchFeedChecked records when a feed was last polled.
func (s *Store) TouchFeedChecked(ctx context.Context, feedID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET last_checked = ? WHERE id = ?`, at.UTC(), feedID)
	if err != nil {
		return storageErr("touch feed", err)
	}
	return nil
}

// ActiveFeeds returns feeds eligible for polling: active and not
// flagged paywalled.
func (s *Store) ActiveFeeds(ctx context.Context) ([]domain.Feed, error) {
	return s.queryFeeds(ctx, s.sb.Select(feedColumns...).
		From("feeds").
		Where(sq.Eq{"is_active": true, "is_paywalled": false}).
		OrderBy("id"))
}

// FeedByID fetches one feed by primary key.
func (s *Store) FeedByID(ctx context.Context, feedID int64) (domain.Feed, error) {
	feeds, err := s.queryFeeds(ctx, s.sb.Select(feedColumns...).
		From("feeds").
		Where(sq.Eq{"id": feedID}))
	if err != nil {
		return domain.Feed{}, err
	}
	if len(feeds) == 0 {
		return domain.Feed{}, storageErr("feed by id", sql.ErrNoRows)
	}
	return feeds[0], nil
}

// ListFeeds returns all feeds, optionally including inactive ones.
func (s *Store) ListFeeds(ctx context.Context, includeInactive bool) ([]domain.Feed, error) {
	builder := s.sb.Select(feedColumns...).From("feeds").OrderBy("name")
	if !includeInactive {
		builder = builder.Where(sq.Eq{"is_active": true})
	}
	return s.queryFeeds(ctx, builder)
}

func (s *Store) queryFeeds(ctx context.Context, builder sq.SelectBuilder) ([]domain.Feed, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, storageErr("list feeds", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list feeds", err)
	}
	defer rows.Close()

	var feeds []domain.Feed
	for rows.Next() {
		var (
			f           domain.Feed
			kind        string
			lastHit     sql.NullTime
			lastChecked sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.URL, &f.Name, &kind, &f.IsActive, &f.IsPaywalled,
			&f.PaywallHits, &lastHit, &lastChecked, &f.CreatedAt); err != nil {
			return nil, storageErr("scan feed", err)
		}
		f.Kind = domain.FeedKind(kind)
		if lastHit.Valid {
			t := lastHit.Time
			f.LastPaywallHit = &t
		}
		if lastChecked.Valid {
			t := lastChecked.Time
			f.LastChecked = &t
		}
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate feeds", err)
	}
	return feeds, nil
}
