package ports

import (
	"context"
	"time"

	"ArticleRelay/internal/domain"
)

// EntrySource polls one feed and yields its current entries in feed
// order. Implementations are registered per feed kind.
type EntrySource interface {
	Kind() domain.FeedKind
	Poll(ctx context.Context, feed domain.Feed) ([]domain.Entry, error)
}

// Scraper extracts article content from a URL and reports whether the
// page looks paywalled.
type Scraper interface {
	Fetch(ctx context.Context, url string) (domain.ScrapedArticle, error)
}

// RewriteRequest carries one article into the AI rewriter.
type RewriteRequest struct {
	Title string
	Text  string
	Style string
	Tone  string
	Hints []domain.ThematicPrompt
}

// Rewriter rewrites article text through an AI backend.
type Rewriter interface {
	Provider() string
	Model() string
	Rewrite(ctx context.Context, req RewriteRequest) (domain.RewrittenArticle, error)
}

// Post is the publishing payload handed to the target site.
type Post struct {
	Title     string
	Content   string
	Tags      []string
	Status    string
	SourceURL string
	Rewritten bool
	Provider  string
	Model     string
}

// Publisher pushes a finished post to the target site and returns the
// created resource identifier.
type Publisher interface {
	Publish(ctx context.Context, post Post) (string, error)
}

// Notifier delivers the per-run summary to an outbound channel.
type Notifier interface {
	NotifySummary(ctx context.Context, summary domain.RunSummary) error
}

// Scheduler controls when pipeline runs execute in watch mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Repository is the store contract every component persists through.
// Composite operations are individually transactional and safe under
// concurrent callers.
type Repository interface {
	// Feeds.
	AddFeed(ctx context.Context, url, name string, kind domain.FeedKind) (int64, error)
	RemoveFeed(ctx context.Context, feedID int64) error
	ToggleFeed(ctx context.Context, feedID int64) (bool, error)
	MarkFeedPaywalled(ctx context.Context, feedID int64) error
	TouchFeedChecked(ctx context.Context, feedID int64, at time.Time) error
	ActiveFeeds(ctx context.Context) ([]domain.Feed, error)
	ListFeeds(ctx context.Context, includeInactive bool) ([]domain.Feed, error)
	FeedByID(ctx context.Context, feedID int64) (domain.Feed, error)

	// Entries and stages.
	InsertEntryIfNew(ctx context.Context, feedID *int64, entry domain.Entry) (int64, bool, error)
	AdvanceStage(ctx context.Context, entryID int64, stage domain.Stage) error
	MarkFailed(ctx context.Context, entryID int64, reason string) error
	SaveScraped(ctx context.Context, entryID int64, art domain.ScrapedArticle) error
	SaveRewriteResult(ctx context.Context, entryID int64, contentHash string, tags []string) error
	SavePostID(ctx context.Context, entryID int64, postID string) error
	PendingEntries(ctx context.Context) ([]domain.ProcessedEntry, error)

	// Paywall accounting.
	RecordPaywallHit(ctx context.Context, feedID int64, articleURL string) error
	RecentPaywallHits(ctx context.Context, feedID int64, since time.Time) (int, error)

	// Rewrite cache.
	GetOrPutRewrite(ctx context.Context, contentHash, provider, model string,
		producer func() (domain.RewriteCacheEntry, error)) (domain.RewriteCacheEntry, error)

	// Tags and prompts.
	UpsertTag(ctx context.Context, raw, source string) (string, error)
	UpsertThematicPrompt(ctx context.Context, tagName, prompt string) error
	ThematicPrompts(ctx context.Context) ([]domain.ThematicPrompt, error)

	Stats(ctx context.Context) (domain.FeedStats, error)
}
