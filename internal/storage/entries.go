package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ArticleRelay/internal/domain"
)

// InsertEntryIfNew atomically records an entry unless one already
// exists for the same (feed, fingerprint). Returns the row id and
// whether this call created it; two concurrent callers observe exactly
// one created=true.
func (s *Store) InsertEntryIfNew(ctx context.Context, feedID *int64, entry domain.Entry) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_entries (feed_id, fingerprint, title, url, published_at, processed_at, stage)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		nullableID(feedID), entry.Fingerprint, entry.Title, entry.URL,
		nullableTime(entry.PublishedAt), time.Now().UTC(), string(domain.StageDiscovered),
	)
	if err != nil {
		return 0, false, storageErr("insert entry", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, storageErr("insert entry", err)
	}

	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, storageErr("insert entry", err)
		}
		return id, true, nil
	}

	// Lost the race or seen in a previous run; fetch the existing row.
	var id int64
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM processed_entries
		WHERE COALESCE(feed_id, 0) = COALESCE(?, 0) AND fingerprint = ?`,
		nullableID(feedID), entry.Fingerprint)
	if err := row.Scan(&id); err != nil {
		return 0, false, storageErr("lookup entry", err)
	}
	return id, false, nil
}

// AdvanceStage moves an entry forward. Backward transitions are logged
// no-ops; use MarkFailed for the failure transition.
func (s *Store) AdvanceStage(ctx context.Context, entryID int64, stage domain.Stage) error {
	return s.withTx(ctx, "advance stage", func(tx *sql.Tx) error {
		var current string
		row := tx.QueryRowContext(ctx, `SELECT stage FROM processed_entries WHERE id = ?`, entryID)
		if err := row.Scan(&current); err != nil {
			return storageErr("advance stage", err)
		}

		if !domain.Stage(current).Before(stage) {
			s.logger.Warn("refusing backward stage transition",
				"entry_id", entryID, "from", current, "to", string(stage))
			return nil
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE processed_entries SET stage = ?, processed_at = ? WHERE id = ?`,
			string(stage), time.Now().UTC(), entryID)
		if err != nil {
			return storageErr("advance stage", err)
		}
		return nil
	})
}

// MarkFailed transitions a non-terminal entry to failed with a reason.
// Terminal entries are left untouched.
func (s *Store) MarkFailed(ctx context.Context, entryID int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processed_entries SET stage = ?, fail_reason = ?, processed_at = ?
		WHERE id = ? AND stage NOT IN (?, ?)`,
		string(domain.StageFailed), reason, time.Now().UTC(), entryID,
		string(domain.StagePublished), string(domain.StageFailed))
	if err != nil {
		return storageErr("mark failed", err)
	}
	return nil
}

// SaveScraped persists the scrape snapshot on the entry so rewrite,
// publish, and crash recovery never refetch the page.
func (s *Store) SaveScraped(ctx context.Context, entryID int64, art domain.ScrapedArticle) error {
	images, err := json.Marshal(art.Images)
	if err != nil {
		return storageErr("save scraped", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE processed_entries
		SET scraped_title = ?, scraped_author = ?, scraped_date = ?, scraped_text = ?, scraped_images = ?
		WHERE id = ?`,
		art.Title, art.Author, art.Date, art.Text, string(images), entryID)
	if err != nil {
		return storageErr("save scraped", err)
	}
	return nil
}

// SaveRewriteResult records the cache key and produced tags so a later
// run resumes publish from the cache instead of re-billing the AI call.
func (s *Store) SaveRewriteResult(ctx context.Context, entryID int64, contentHash string, tags []string) error {
	raw, err := json.Marshal(tags)
	if err != nil {
		return storageErr("save rewrite result", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE processed_entries SET content_hash = ?, tags = ? WHERE id = ?`,
		contentHash, string(raw), entryID)
	if err != nil {
		return storageErr("save rewrite result", err)
	}
	return nil
}

// SavePostID records the created resource id returned by the publisher.
func (s *Store) SavePostID(ctx context.Context, entryID int64, postID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE processed_entries SET post_id = ? WHERE id = ?`, postID, entryID)
	if err != nil {
		return storageErr("save post id", err)
	}
	return nil
}

// PendingEntries returns entries from previous runs that never reached
// a terminal stage, hydrated with their snapshots, oldest first.
func (s *Store) PendingEntries(ctx context.Context) ([]domain.ProcessedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feed_id, fingerprint, title, url, published_at, processed_at,
		       stage, fail_reason, post_id, content_hash, tags,
		       scraped_title, scraped_author, scraped_date, scraped_text, scraped_images
		FROM processed_entries
		WHERE stage NOT IN (?, ?)
		ORDER BY id`,
		string(domain.StagePublished), string(domain.StageFailed))
	if err != nil {
		return nil, storageErr("pending entries", err)
	}
	defer rows.Close()

	var entries []domain.ProcessedEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("pending entries", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (domain.ProcessedEntry, error) {
	var (
		e          domain.ProcessedEntry
		feedID     sql.NullInt64
		published  sql.NullTime
		stage      string
		tagsJSON   string
		scrTitle   sql.NullString
		scrAuthor  sql.NullString
		scrDate    sql.NullString
		scrText    sql.NullString
		scrImages  sql.NullString
	)

	if err := rows.Scan(&e.ID, &feedID, &e.Fingerprint, &e.Title, &e.URL, &published,
		&e.ProcessedAt, &stage, &e.FailReason, &e.PostID, &e.ContentHash, &tagsJSON,
		&scrTitle, &scrAuthor, &scrDate, &scrText, &scrImages); err != nil {
		return domain.ProcessedEntry{}, storageErr("scan entry", err)
	}

	e.Stage = domain.Stage(stage)
	if feedID.Valid {
		id := feedID.Int64
		e.FeedID = &id
	}
	if published.Valid {
		t := published.Time
		e.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return domain.ProcessedEntry{}, storageErr("decode entry tags", err)
	}

	if scrText.Valid {
		snap := domain.ScrapedArticle{
			Title:  scrTitle.String,
			Author: scrAuthor.String,
			Date:   scrDate.String,
			Text:   scrText.String,
		}
		if scrImages.Valid && scrImages.String != "" {
			if err := json.Unmarshal([]byte(scrImages.String), &snap.Images); err != nil {
				return domain.ProcessedEntry{}, storageErr("decode entry images", err)
			}
		}
		e.Scraped = &snap
	}

	return e, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
