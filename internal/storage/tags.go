package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/tags"
)

// UpsertTag records a sighting of a raw tag under its canonical key:
// first sighting creates the row, later ones bump usage and collect
// novel raw spellings. Returns the normalized name.
func (s *Store) UpsertTag(ctx context.Context, raw, source string) (string, error) {
	normalized := tags.Normalize(raw)
	now := time.Now().UTC()

	err := s.withTx(ctx, "upsert tag", func(tx *sql.Tx) error {
		var (
			id       int64
			variants string
		)
		row := tx.QueryRowContext(ctx,
			`SELECT id, raw_variants FROM tags WHERE normalized_name = ?`, normalized)
		err := row.Scan(&id, &variants)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			initial, mErr := json.Marshal([]string{raw})
			if mErr != nil {
				return storageErr("upsert tag", mErr)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tags (name, normalized_name, raw_variants, usage_count, last_used, source, created_at)
				VALUES (?, ?, ?, 1, ?, ?, ?)`,
				raw, normalized, string(initial), now, source, now)
			if err != nil {
				return storageErr("upsert tag", err)
			}
			return nil

		case err != nil:
			return storageErr("upsert tag", err)
		}

		var seen []string
		if uErr := json.Unmarshal([]byte(variants), &seen); uErr != nil {
			return storageErr("upsert tag", uErr)
		}
		novel := true
		for _, v := range seen {
			if v == raw {
				novel = false
				break
			}
		}
		if novel {
			seen = append(seen, raw)
		}
		updated, mErr := json.Marshal(seen)
		if mErr != nil {
			return storageErr("upsert tag", mErr)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tags SET usage_count = usage_count + 1, last_used = ?, raw_variants = ?
			WHERE id = ?`, now, string(updated), id)
		if err != nil {
			return storageErr("upsert tag", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return normalized, nil
}

// GetTag returns one tag by normalized name, mainly for tests and the
// stats command.
func (s *Store) GetTag(ctx context.Context, normalized string) (domain.Tag, error) {
	var (
		t        domain.Tag
		variants string
		lastUsed sql.NullTime
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, raw_variants, usage_count, last_used, source, created_at
		FROM tags WHERE normalized_name = ?`, normalized)
	if err := row.Scan(&t.ID, &t.Name, &t.NormalizedName, &variants,
		&t.UsageCount, &lastUsed, &t.Source, &t.CreatedAt); err != nil {
		return domain.Tag{}, storageErr("get tag", err)
	}
	if err := json.Unmarshal([]byte(variants), &t.RawVariants); err != nil {
		return domain.Tag{}, storageErr("get tag", err)
	}
	if lastUsed.Valid {
		lu := lastUsed.Time
		t.LastUsed = &lu
	}
	return t, nil
}

// UpsertThematicPrompt inserts or replaces the steering prompt for a
// tag name.
func (s *Store) UpsertThematicPrompt(ctx context.Context, tagName, prompt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thematic_prompts (tag_name, prompt, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tag_name) DO UPDATE SET prompt = excluded.prompt, updated_at = excluded.updated_at`,
		tagName, prompt, time.Now().UTC())
	if err != nil {
		return storageErr("upsert thematic prompt", err)
	}
	return nil
}

// ThematicPrompts returns all steering prompts, ordered by tag name.
func (s *Store) ThematicPrompts(ctx context.Context) ([]domain.ThematicPrompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_name, prompt FROM thematic_prompts ORDER BY tag_name`)
	if err != nil {
		return nil, storageErr("thematic prompts", err)
	}
	defer rows.Close()

	var prompts []domain.ThematicPrompt
	for rows.Next() {
		var p domain.ThematicPrompt
		if err := rows.Scan(&p.TagName, &p.Prompt); err != nil {
			return nil, storageErr("thematic prompts", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("thematic prompts", err)
	}
	return prompts, nil
}
