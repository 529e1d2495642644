package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ArticleRelay/internal/domain"
)

// GetOrPutRewrite is the single-flight memoization boundary around the
// billable AI call. A cached row is returned without invoking producer;
// otherwise producer runs exactly once per key across goroutines, and
// only a successful result is persisted. Concurrent processes converge
// on one row through the insert-if-absent write.
func (s *Store) GetOrPutRewrite(ctx context.Context, contentHash, provider, model string,
	producer func() (domain.RewriteCacheEntry, error)) (domain.RewriteCacheEntry, error) {

	lock := s.rewriteKeyLock(contentHash + "\x00" + provider + "\x00" + model)
	lock.Lock()
	defer lock.Unlock()

	cached, err := s.lookupRewrite(ctx, contentHash, provider, model)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.RewriteCacheEntry{}, storageErr("get rewrite", err)
	}

	produced, err := producer()
	if err != nil {
		// A failed rewrite must not poison the cache.
		return domain.RewriteCacheEntry{}, err
	}
	produced.ContentHash = contentHash
	produced.Provider = provider
	produced.Model = model
	produced.CreatedAt = time.Now().UTC()

	tagsJSON, err := json.Marshal(produced.Tags)
	if err != nil {
		return domain.RewriteCacheEntry{}, storageErr("put rewrite", err)
	}
	metadata := produced.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rewrite_cache (content_hash, provider, model, title, body, tags, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		contentHash, provider, model, produced.Title, produced.Text,
		string(tagsJSON), metadata, produced.CreatedAt)
	if err != nil {
		return domain.RewriteCacheEntry{}, storageErr("put rewrite", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.RewriteCacheEntry{}, storageErr("put rewrite", err)
	}
	if affected == 0 {
		// Another process persisted first; its row wins.
		existing, err := s.lookupRewrite(ctx, contentHash, provider, model)
		if err != nil {
			return domain.RewriteCacheEntry{}, storageErr("get rewrite", err)
		}
		return existing, nil
	}

	return produced, nil
}

func (s *Store) lookupRewrite(ctx context.Context, contentHash, provider, model string) (domain.RewriteCacheEntry, error) {
	var (
		entry    domain.RewriteCacheEntry
		tagsJSON string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, provider, model, title, body, tags, metadata, created_at
		FROM rewrite_cache
		WHERE content_hash = ? AND provider = ? AND model = ?`,
		contentHash, provider, model)
	if err := row.Scan(&entry.ContentHash, &entry.Provider, &entry.Model,
		&entry.Title, &entry.Text, &tagsJSON, &entry.Metadata, &entry.CreatedAt); err != nil {
		return domain.RewriteCacheEntry{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return domain.RewriteCacheEntry{}, err
	}
	return entry, nil
}

func (s *Store) rewriteKeyLock(key string) *sync.Mutex {
	s.rewriteMu.Lock()
	defer s.rewriteMu.Unlock()
	lock, ok := s.rewriteLk[key]
	if !ok {
		lock = &sync.Mutex{}
		s.rewriteLk[key] = lock
	}
	return lock
}
