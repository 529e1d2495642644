// Package app assembles the application graph from configuration.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"ArticleRelay/internal/config"
	"ArticleRelay/internal/health"
	"ArticleRelay/internal/infrastructure/llm"
	"ArticleRelay/internal/infrastructure/rss"
	"ArticleRelay/internal/infrastructure/scrape"
	"ArticleRelay/internal/infrastructure/sitescan"
	"ArticleRelay/internal/infrastructure/telegram"
	"ArticleRelay/internal/infrastructure/wordpress"
	"ArticleRelay/internal/logging"
	"ArticleRelay/internal/ports"
	"ArticleRelay/internal/source"
	"ArticleRelay/internal/storage"
	"ArticleRelay/internal/usecase"
)

// App holds the wired components shared by every command.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    *storage.Store
	Registry *source.Registry
	Scraper  ports.Scraper
	Health   *health.Manager
}

// New opens the store and registers the entry sources. The paywall
// decision function is injected so the CLI can plug in an interactive
// prompt while watch mode stays non-interactive.
func New(cfg config.Config, decide health.DecisionFunc) (*App, error) {
	logger := logging.New(cfg.Logging.Level)

	store, err := storage.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := &http.Client{Timeout: cfg.Monitor.FetchTimeout()}

	registry := source.NewRegistry()
	registry.Register(rss.NewPoller(rss.Options{
		Client:     client,
		MaxEntries: cfg.Monitor.MaxEntries,
		MaxRetries: cfg.Monitor.MaxRetries,
		RetryDelay: cfg.Monitor.RetryDelay(),
		UserAgent:  cfg.Monitor.UserAgent,
	}, logger))
	registry.Register(sitescan.New(client, cfg.Monitor.UserAgent, cfg.Monitor.MaxEntries, logger))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: registry,
		Scraper:  scrape.New(client, cfg.Monitor.UserAgent, logger),
		Health:   health.New(store, cfg.Paywall.Threshold, cfg.Paywall.Window(), decide, logger),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Pipeline builds a run orchestrator honoring the given options.
// Rewriter, publisher, and notifier are wired only when configured and
// not skipped.
func (a *App) Pipeline(opts usecase.PipelineOptions) (*usecase.Pipeline, error) {
	if opts.Style == "" {
		opts.Style = a.Config.Rewrite.Style
	}
	if opts.Tone == "" {
		opts.Tone = a.Config.Rewrite.Tone
	}
	if opts.PublishStatus == "" {
		opts.PublishStatus = a.Config.Publish.Status
	}
	if opts.PublishRetries == 0 {
		opts.PublishRetries = a.Config.Publish.MaxRetries
	}
	if opts.PublishBackoff == 0 {
		opts.PublishBackoff = a.Config.Publish.RetryBackoff()
	}

	var rewriter ports.Rewriter
	if a.Config.Rewrite.Enabled && !opts.SkipRewrite {
		r, err := llm.FromConfig(a.Config.Rewrite)
		if err != nil {
			return nil, fmt.Errorf("configure rewriter: %w", err)
		}
		rewriter = r
	}

	var publisher ports.Publisher
	if a.Config.Publish.URL != "" && !opts.SkipPublish {
		publisher = wordpress.New(
			a.Config.Publish.URL,
			a.Config.Publish.Username,
			a.Config.Publish.Password,
			a.Config.Publish.Timeout(),
		)
	}

	var notifier ports.Notifier
	if tg := a.Config.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.New(tg.BotToken, tg.ChatID)
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Registry:  a.Registry,
		Repo:      a.Store,
		Scraper:   a.Scraper,
		Rewriter:  rewriter,
		Publisher: publisher,
		Notifier:  notifier,
		Health:    a.Health,
		Logger:    a.Logger,
	}, opts), nil
}
