// Package usecase contains the pipeline orchestrator: the run loop
// that carries entries from discovery through scraping, rewriting, and
// publishing, with crash recovery and per-article failure isolation.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/health"
	"ArticleRelay/internal/ports"
	"ArticleRelay/internal/rewrite"
	"ArticleRelay/internal/source"
)

// PipelineOptions carries the per-run knobs from flags and config.
type PipelineOptions struct {
	// Limit bounds how many new entries one run processes; 0 means
	// unlimited.
	Limit          int
	SkipRewrite    bool
	SkipPublish    bool
	Style          string
	Tone           string
	PublishStatus  string
	PublishRetries int
	PublishBackoff time.Duration
}

// PipelineDeps lists the collaborators a pipeline needs. Rewriter,
// Publisher, and Notifier may be nil when the corresponding step is
// unconfigured.
type PipelineDeps struct {
	Registry  *source.Registry
	Repo      ports.Repository
	Scraper   ports.Scraper
	Rewriter  ports.Rewriter
	Publisher ports.Publisher
	Notifier  ports.Notifier
	Health    *health.Manager
	Logger    *slog.Logger
}

// Pipeline drives one monitoring run end to end.
type Pipeline struct {
	registry  *source.Registry
	repo      ports.Repository
	scraper   ports.Scraper
	cache     *rewrite.Cache
	publisher ports.Publisher
	notifier  ports.Notifier
	health    *health.Manager
	recovery  *Recovery
	opts      PipelineOptions
	logger    *slog.Logger
}

// NewPipeline assembles the orchestrator.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache *rewrite.Cache
	if deps.Rewriter != nil {
		cache = rewrite.NewCache(deps.Repo, deps.Rewriter)
	}

	return &Pipeline{
		registry:  deps.Registry,
		repo:      deps.Repo,
		scraper:   deps.Scraper,
		cache:     cache,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		health:    deps.Health,
		recovery:  NewRecovery(deps.Repo, logger),
		opts:      opts,
		logger:    logger,
	}
}

// workItem is the in-flight state of one entry moving through the run.
type workItem struct {
	entryID int64
	feed    *domain.Feed
	title   string
	url     string
	stage   domain.Stage
	scraped *domain.ScrapedArticle
	tags    []string
}

// Run executes one full pass: resume interrupted entries first, then
// poll every active feed. Failures of individual articles are recorded
// and skipped; only storage failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	p.logger.Info("pipeline run starting", "run_id", summary.RunID)

	err := p.run(ctx, &summary)
	summary.FinishedAt = time.Now().UTC()

	if err != nil {
		p.logger.Error("pipeline run aborted", "run_id", summary.RunID, "error", err)
	} else {
		p.logger.Info("pipeline run finished",
			"run_id", summary.RunID,
			"discovered", summary.Discovered,
			"published", summary.Published,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"paywalled", summary.Paywalled,
			"resumed", summary.Resumed)
	}

	if p.notifier != nil {
		if nerr := p.notifier.NotifySummary(ctx, summary); nerr != nil {
			p.logger.Warn("summary notification failed", "error", nerr)
		}
	}

	return summary, err
}

func (p *Pipeline) run(ctx context.Context, summary *domain.RunSummary) error {
	pending, err := p.recovery.Pending(ctx)
	if err != nil {
		return err
	}
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Resumed++
		if err := p.process(ctx, p.resumeItem(ctx, e), summary); err != nil {
			return err
		}
	}

	feeds, err := p.repo.ActiveFeeds(ctx)
	if err != nil {
		return err
	}

	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			return err
		}

		src, err := p.registry.Resolve(feed.Kind)
		if err != nil {
			p.logger.Error("feed skipped", "feed", feed.URL, "error", err)
			continue
		}

		entries, err := src.Poll(ctx, feed)
		if err != nil {
			p.logger.Warn("feed poll failed", "feed", feed.URL, "error", err)
			continue
		}
		if err := p.repo.TouchFeedChecked(ctx, feed.ID, time.Now().UTC()); err != nil {
			return err
		}

		for _, entry := range entries {
			if p.opts.Limit > 0 && summary.Discovered >= p.opts.Limit {
				p.logger.Info("entry limit reached", "limit", p.opts.Limit)
				return nil
			}

			id, created, err := p.repo.InsertEntryIfNew(ctx, &feed.ID, entry)
			if err != nil {
				return err
			}
			if !created {
				summary.Skipped++
				continue
			}
			summary.Discovered++

			it := &workItem{
				entryID: id,
				feed:    &feed,
				title:   entry.Title,
				url:     entry.URL,
				stage:   domain.StageDiscovered,
				tags:    entry.Tags,
			}
			if err := p.process(ctx, it, summary); err != nil {
				return err
			}
		}
	}

	return nil
}

// resumeItem rebuilds in-flight state from a persisted entry. A missing
// feed (removed since discovery) degrades to feed-less processing.
func (p *Pipeline) resumeItem(ctx context.Context, e domain.ProcessedEntry) *workItem {
	it := &workItem{
		entryID: e.ID,
		title:   e.Title,
		url:     e.URL,
		stage:   e.Stage,
		scraped: e.Scraped,
		tags:    e.Tags,
	}
	if e.FeedID != nil {
		if feed, err := p.repo.FeedByID(ctx, *e.FeedID); err == nil {
			it.feed = &feed
		} else {
			p.logger.Debug("feed lookup failed on resume", "entry_id", e.ID, "error", err)
		}
	}
	return it
}

// process advances one entry as far as it can go this run. Returned
// errors are run-fatal; article-level failures are marked on the entry
// and swallowed.
func (p *Pipeline) process(ctx context.Context, it *workItem, summary *domain.RunSummary) error {
	// A snapshot lost between runs forces a re-scrape.
	if it.scraped == nil && it.stage != domain.StageDiscovered {
		p.logger.Warn("scrape snapshot missing, refetching", "entry_id", it.entryID, "url", it.url)
		it.stage = domain.StageDiscovered
	}

	if it.stage == domain.StageDiscovered {
		done, err := p.scrape(ctx, it, summary)
		if err != nil || done {
			return err
		}
	}

	post, done, err := p.prepare(ctx, it, summary)
	if err != nil || done {
		return err
	}

	return p.publish(ctx, it, post, summary)
}

// scrape fetches the article and routes the paywall signal into the
// feed health manager. done=true means the entry reached a terminal
// stage here.
func (p *Pipeline) scrape(ctx context.Context, it *workItem, summary *domain.RunSummary) (bool, error) {
	art, err := p.scraper.Fetch(ctx, it.url)
	if err != nil {
		p.logger.Warn("scrape failed", "url", it.url, "error", err)
		summary.Failed++
		return true, p.repo.MarkFailed(ctx, it.entryID, domain.ReasonScrapeError)
	}

	if art.Paywalled {
		if it.feed != nil {
			if err := p.health.RecordHit(ctx, *it.feed, it.url); err != nil {
				return true, err
			}
		}
		summary.Paywalled++
		return true, p.repo.MarkFailed(ctx, it.entryID, domain.ReasonPaywalled)
	}

	if err := p.repo.SaveScraped(ctx, it.entryID, art); err != nil {
		return true, err
	}
	if err := p.repo.AdvanceStage(ctx, it.entryID, domain.StageScraped); err != nil {
		return true, err
	}
	it.scraped = &art
	it.stage = domain.StageScraped
	return false, nil
}

// prepare produces the publishable post, either through the rewrite
// cache or by carrying the scraped text forward when rewriting is off.
// Resumed entries hit the cache by content hash, so no AI call repeats.
func (p *Pipeline) prepare(ctx context.Context, it *workItem, summary *domain.RunSummary) (ports.Post, bool, error) {
	title := it.scraped.Title
	if title == "" {
		title = it.title
	}

	if p.opts.SkipRewrite || p.cache == nil {
		tags, err := p.collectTags(ctx, it.tags, []string{"unrewritten"}, "system")
		if err != nil {
			return ports.Post{}, true, err
		}
		return ports.Post{
			Title:     title,
			Content:   it.scraped.Text,
			Tags:      tags,
			Status:    p.opts.PublishStatus,
			SourceURL: it.url,
		}, false, nil
	}

	hints, err := p.repo.ThematicPrompts(ctx)
	if err != nil {
		return ports.Post{}, true, err
	}

	entry, hash, err := p.cache.Rewrite(ctx, ports.RewriteRequest{
		Title: title,
		Text:  it.scraped.Text,
		Style: p.opts.Style,
		Tone:  p.opts.Tone,
		Hints: hints,
	})
	if err != nil {
		var se *domain.StorageError
		if errors.As(err, &se) {
			return ports.Post{}, true, err
		}
		p.logger.Warn("rewrite failed", "url", it.url, "error", err)
		summary.Failed++
		return ports.Post{}, true, p.repo.MarkFailed(ctx, it.entryID, domain.ReasonRewriteError)
	}

	tags, err := p.collectTags(ctx, it.tags, entry.Tags, "ai")
	if err != nil {
		return ports.Post{}, true, err
	}

	if err := p.repo.SaveRewriteResult(ctx, it.entryID, hash, tags); err != nil {
		return ports.Post{}, true, err
	}
	if it.stage.Before(domain.StageRewritten) {
		if err := p.repo.AdvanceStage(ctx, it.entryID, domain.StageRewritten); err != nil {
			return ports.Post{}, true, err
		}
		it.stage = domain.StageRewritten
	}

	outTitle := entry.Title
	if outTitle == "" {
		outTitle = title
	}
	return ports.Post{
		Title:     outTitle,
		Content:   entry.Text,
		Tags:      tags,
		Status:    p.opts.PublishStatus,
		SourceURL: it.url,
		Rewritten: true,
		Provider:  entry.Provider,
		Model:     entry.Model,
	}, false, nil
}

// publish pushes the post with bounded retries. Exhausting the retries
// fails the entry; a later run will not retry it.
func (p *Pipeline) publish(ctx context.Context, it *workItem, post ports.Post, summary *domain.RunSummary) error {
	if p.opts.SkipPublish || p.publisher == nil {
		p.logger.Info("publish skipped, entry stays resumable", "url", it.url)
		return nil
	}

	retries := p.opts.PublishRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		postID, err := p.publisher.Publish(ctx, post)
		if err == nil {
			if err := p.repo.SavePostID(ctx, it.entryID, postID); err != nil {
				return err
			}
			if err := p.repo.AdvanceStage(ctx, it.entryID, domain.StagePublished); err != nil {
				return err
			}
			it.stage = domain.StagePublished
			summary.Published++
			p.logger.Info("published", "url", it.url, "post_id", postID)
			return nil
		}

		lastErr = err
		p.logger.Warn("publish attempt failed", "url", it.url, "attempt", attempt, "error", err)
		if attempt < retries && p.opts.PublishBackoff > 0 {
			select {
			case <-time.After(p.opts.PublishBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	p.logger.Error("publish failed after retries", "url", it.url, "error", lastErr)
	summary.Failed++
	return p.repo.MarkFailed(ctx, it.entryID, domain.ReasonPublishError)
}

// collectTags normalizes and persists every tag, returning the unique
// canonical names in first-seen order.
func (p *Pipeline) collectTags(ctx context.Context, feedTags, extraTags []string, extraSource string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}

	store := func(raw []string, src string) error {
		for _, t := range raw {
			if strings.TrimSpace(t) == "" {
				continue
			}
			norm, err := p.repo.UpsertTag(ctx, t, src)
			if err != nil {
				return err
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, norm)
		}
		return nil
	}

	if err := store(feedTags, "feed"); err != nil {
		return nil, err
	}
	if err := store(extraTags, extraSource); err != nil {
		return nil, err
	}
	return out, nil
}
