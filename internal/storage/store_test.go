package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRelay/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addTestFeed(t *testing.T, s *Store, url string) int64 {
	t.Helper()

	id, err := s.AddFeed(context.Background(), url, "", domain.FeedKindRSS)
	require.NoError(t, err)
	return id
}

func entryStage(t *testing.T, s *Store, entryID int64) domain.Stage {
	t.Helper()

	var stage string
	row := s.DB().QueryRow(`SELECT stage FROM processed_entries WHERE id = ?`, entryID)
	require.NoError(t, row.Scan(&stage))
	return domain.Stage(stage)
}

func TestInsertEntryIfNewDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	entry := domain.Entry{Fingerprint: "guid-1", Title: "First", URL: "https://example.com/a"}

	id1, created, err := store.InsertEntryIfNew(ctx, &feedID, entry)
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := store.InsertEntryIfNew(ctx, &feedID, entry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)
}

func TestInsertEntryIfNewNilFeedDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := domain.Entry{Fingerprint: domain.URLFingerprint("https://example.com/direct"), URL: "https://example.com/direct"}

	_, created, err := store.InsertEntryIfNew(ctx, nil, entry)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = store.InsertEntryIfNew(ctx, nil, entry)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestInsertEntryIfNewSameFingerprintDifferentFeeds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedA := addTestFeed(t, store, "https://a.example.com/feed.xml")
	feedB := addTestFeed(t, store, "https://b.example.com/feed.xml")

	entry := domain.Entry{Fingerprint: "shared-guid", URL: "https://example.com/a"}

	_, created, err := store.InsertEntryIfNew(ctx, &feedA, entry)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = store.InsertEntryIfNew(ctx, &feedB, entry)
	require.NoError(t, err)
	assert.True(t, created, "dedup is scoped per feed")
}

func TestInsertEntryIfNewConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	entry := domain.Entry{Fingerprint: "race-guid", URL: "https://example.com/race"}

	const workers = 8
	var createdCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.InsertEntryIfNew(ctx, &feedID, entry)
			assert.NoError(t, err)
			if created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), createdCount.Load(), "exactly one caller observes the insert")
}

func TestAdvanceStageIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	id, _, err := store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "g", URL: "u"})
	require.NoError(t, err)

	require.NoError(t, store.AdvanceStage(ctx, id, domain.StageScraped))
	require.NoError(t, store.AdvanceStage(ctx, id, domain.StageRewritten))

	// Backward transition is a no-op.
	require.NoError(t, store.AdvanceStage(ctx, id, domain.StageScraped))
	assert.Equal(t, domain.StageRewritten, entryStage(t, store, id))
}

func TestMarkFailedSparesTerminalEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	id, _, err := store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "g", URL: "u"})
	require.NoError(t, err)
	require.NoError(t, store.AdvanceStage(ctx, id, domain.StagePublished))

	require.NoError(t, store.MarkFailed(ctx, id, domain.ReasonScrapeError))
	assert.Equal(t, domain.StagePublished, entryStage(t, store, id))
}

func TestPendingEntriesHydratesSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	id, _, err := store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "g", URL: "u"})
	require.NoError(t, err)
	require.NoError(t, store.SaveScraped(ctx, id, domain.ScrapedArticle{
		Title:  "Scraped title",
		Author: "Jordan",
		Text:   "Body text.",
		Images: []string{"https://example.com/img.png"},
	}))
	require.NoError(t, store.AdvanceStage(ctx, id, domain.StageScraped))

	// Terminal entries stay out of the pending set.
	doneID, _, err := store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "done", URL: "u2"})
	require.NoError(t, err)
	require.NoError(t, store.AdvanceStage(ctx, doneID, domain.StagePublished))

	pending, err := store.PendingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	e := pending[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, domain.StageScraped, e.Stage)
	require.NotNil(t, e.Scraped)
	assert.Equal(t, "Scraped title", e.Scraped.Title)
	assert.Equal(t, "Body text.", e.Scraped.Text)
	assert.Equal(t, []string{"https://example.com/img.png"}, e.Scraped.Images)
}

func TestRecentPaywallHitsWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feedID := addTestFeed(t, store, "https://example.com/feed.xml")

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordPaywallHit(ctx, feedID, "https://example.com/article"))
	}

	// Hits outside the window are invisible.
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	_, err := store.DB().Exec(
		`INSERT INTO paywall_hits (feed_id, url, hit_at) VALUES (?, ?, ?)`,
		feedID, "https://example.com/stale", old)
	require.NoError(t, err)

	recent, err := store.RecentPaywallHits(ctx, feedID, time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, recent)

	all, err := store.RecentPaywallHits(ctx, feedID, time.Now().UTC().Add(-60*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, all)
}

func TestGetOrPutRewriteProducerRunsOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var calls atomic.Int32
	producer := func() (domain.RewriteCacheEntry, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return domain.RewriteCacheEntry{Title: "Rewritten", Text: "Body", Tags: []string{"go"}}, nil
	}

	const workers = 6
	results := make([]domain.RewriteCacheEntry, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := store.GetOrPutRewrite(ctx, "hash-1", "openai", "gpt-4o-mini", producer)
			assert.NoError(t, err)
			results[i] = entry
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "producer is billed once per key")
	for _, r := range results {
		assert.Equal(t, "Rewritten", r.Title)
		assert.Equal(t, "openai", r.Provider)
		assert.Equal(t, "gpt-4o-mini", r.Model)
	}
}

func TestGetOrPutRewriteKeyedByProviderAndModel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mk := func(title string) func() (domain.RewriteCacheEntry, error) {
		return func() (domain.RewriteCacheEntry, error) {
			return domain.RewriteCacheEntry{Title: title, Text: "b"}, nil
		}
	}

	a, err := store.GetOrPutRewrite(ctx, "hash-1", "openai", "gpt-4o-mini", mk("A"))
	require.NoError(t, err)
	b, err := store.GetOrPutRewrite(ctx, "hash-1", "anthropic", "claude", mk("B"))
	require.NoError(t, err)

	assert.Equal(t, "A", a.Title)
	assert.Equal(t, "B", b.Title, "same hash under another provider is a distinct row")
}

func TestGetOrPutRewriteFailedProducerPersistsNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := func() (domain.RewriteCacheEntry, error) {
		return domain.RewriteCacheEntry{}, assert.AnError
	}
	_, err := store.GetOrPutRewrite(ctx, "hash-err", "openai", "m", boom)
	require.Error(t, err)

	entry, err := store.GetOrPutRewrite(ctx, "hash-err", "openai", "m",
		func() (domain.RewriteCacheEntry, error) {
			return domain.RewriteCacheEntry{Title: "Recovered", Text: "b"}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Recovered", entry.Title, "failed attempt left no poisoned row")
}

func TestUpsertTagCollectsVariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	norm1, err := store.UpsertTag(ctx, "Machine Learning", "feed")
	require.NoError(t, err)
	norm2, err := store.UpsertTag(ctx, "machine-learning", "ai")
	require.NoError(t, err)
	assert.Equal(t, norm1, norm2)

	tag, err := store.GetTag(ctx, norm1)
	require.NoError(t, err)
	assert.Equal(t, 2, tag.UsageCount)
	assert.ElementsMatch(t, []string{"Machine Learning", "machine-learning"}, tag.RawVariants)

	// Repeating a known spelling bumps usage without duplicating it.
	_, err = store.UpsertTag(ctx, "machine-learning", "ai")
	require.NoError(t, err)
	tag, err = store.GetTag(ctx, norm1)
	require.NoError(t, err)
	assert.Equal(t, 3, tag.UsageCount)
	assert.Len(t, tag.RawVariants, 2)
}

func TestThematicPromptUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertThematicPrompt(ctx, "golang", "Focus on concurrency."))
	require.NoError(t, store.UpsertThematicPrompt(ctx, "golang", "Focus on performance."))
	require.NoError(t, store.UpsertThematicPrompt(ctx, "ai", "Avoid hype."))

	prompts, err := store.ThematicPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "ai", prompts[0].TagName)
	assert.Equal(t, "golang", prompts[1].TagName)
	assert.Equal(t, "Focus on performance.", prompts[1].Prompt)
}

func TestFeedLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddFeed(ctx, "https://example.com/feed.xml", "Example", domain.FeedKindRSS)
	require.NoError(t, err)

	feed, err := store.FeedByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Example", feed.Name)
	assert.True(t, feed.IsActive)

	active, err := store.ActiveFeeds(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	on, err := store.ToggleFeed(ctx, id)
	require.NoError(t, err)
	assert.False(t, on)

	active, err = store.ActiveFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.MarkFeedPaywalled(ctx, id))
	feed, err = store.FeedByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, feed.IsPaywalled)

	require.NoError(t, store.RemoveFeed(ctx, id))
	_, err = store.FeedByID(ctx, id)
	assert.Error(t, err)
}

func TestImportExportFeedsCSV(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	in := filepath.Join(dir, "feeds.csv")
	csv := strings.Join([]string{
		"url,name",
		"https://a.example.com/feed.xml,Feed A",
		",Missing URL",
		"https://b.example.com/feed.xml,Feed B",
	}, "\n")
	require.NoError(t, os.WriteFile(in, []byte(csv), 0o644))

	stats, err := store.ImportFeedsCSV(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)

	out := filepath.Join(dir, "export.csv")
	require.NoError(t, store.ExportFeedsCSV(ctx, out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "https://a.example.com/feed.xml")
	assert.Contains(t, string(raw), "https://b.example.com/feed.xml")
}

func TestStatsRollup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	feedID := addTestFeed(t, store, "https://example.com/feed.xml")
	inactive := addTestFeed(t, store, "https://other.example.com/feed.xml")
	_, err := store.ToggleFeed(ctx, inactive)
	require.NoError(t, err)

	id, _, err := store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "g1", URL: "u1"})
	require.NoError(t, err)
	require.NoError(t, store.AdvanceStage(ctx, id, domain.StagePublished))
	_, _, err = store.InsertEntryIfNew(ctx, &feedID, domain.Entry{Fingerprint: "g2", URL: "u2"})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFeeds)
	assert.Equal(t, 1, stats.ActiveFeeds)
	assert.Equal(t, 1, stats.EntriesByStage[domain.StagePublished])
	assert.Equal(t, 1, stats.EntriesByStage[domain.StageDiscovered])
}
