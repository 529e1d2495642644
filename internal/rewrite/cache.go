// Package rewrite provides content-addressed memoization of AI
// rewrites over the store's get-or-put operation.
package rewrite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// ContentHash digests normalized source text: whitespace collapsed,
// case preserved. Trivial formatting differences between feed copies of
// the same article hash identically; no timestamp or nonce enters the
// key, so rerunning an unchanged article is a guaranteed cache hit.
func ContentHash(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Cache runs rewrites through the persistent rewrite table. Entries are
// never evicted here; pruning is an operational concern.
type Cache struct {
	repo     ports.Repository
	rewriter ports.Rewriter
}

// NewCache wires the repository and the configured AI backend.
func NewCache(repo ports.Repository, rewriter ports.Rewriter) *Cache {
	return &Cache{repo: repo, rewriter: rewriter}
}

// Rewrite returns the cached rewrite of the text if one exists for the
// current provider and model, invoking the AI backend at most once per
// key otherwise. A provider failure persists nothing.
func (c *Cache) Rewrite(ctx context.Context, req ports.RewriteRequest) (domain.RewriteCacheEntry, string, error) {
	hash := ContentHash(req.Text)

	entry, err := c.repo.GetOrPutRewrite(ctx, hash, c.rewriter.Provider(), c.rewriter.Model(),
		func() (domain.RewriteCacheEntry, error) {
			out, err := c.rewriter.Rewrite(ctx, req)
			if err != nil {
				return domain.RewriteCacheEntry{}, err
			}
			return domain.RewriteCacheEntry{
				Title: out.Title,
				Text:  out.Text,
				Tags:  out.Tags,
			}, nil
		})
	if err != nil {
		return domain.RewriteCacheEntry{}, "", err
	}
	return entry, hash, nil
}
