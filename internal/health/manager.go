// Package health tracks per-feed paywall failures and drives the
// feed-status state machine: a feed keeps counting hits while active,
// and crossing the threshold within the sliding window surfaces a
// decision to keep, paywall, or remove it.
package health

import (
	"context"
	"log/slog"
	"time"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// DecisionFunc resolves a feed that crossed the paywall threshold.
// Implementations may prompt the operator or apply a fixed policy.
type DecisionFunc func(feed domain.Feed, recentHits int) domain.PaywallDecision

// Manager accounts paywall hits per feed through the repository.
type Manager struct {
	repo      ports.Repository
	threshold int
	window    time.Duration
	decide    DecisionFunc
	logger    *slog.Logger
}

// New builds a manager. Threshold and window come from configuration,
// not constants; decide may be nil, in which case feeds are kept.
func New(repo ports.Repository, threshold int, window time.Duration, decide DecisionFunc, logger *slog.Logger) *Manager {
	if decide == nil {
		decide = func(domain.Feed, int) domain.PaywallDecision { return domain.DecisionKeep }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:      repo,
		threshold: threshold,
		window:    window,
		decide:    decide,
		logger:    logger,
	}
}

// RecordHit registers one detected paywall block. When the feed's hits
// within the trailing window reach the threshold, the decision function
// chooses whether the feed stays monitored, is flagged paywalled, or is
// removed. Detection itself is the scraper's concern; this consumes the
// boolean signal only.
func (m *Manager) RecordHit(ctx context.Context, feed domain.Feed, articleURL string) error {
	if err := m.repo.RecordPaywallHit(ctx, feed.ID, articleURL); err != nil {
		return err
	}

	since := time.Now().UTC().Add(-m.window)
	recent, err := m.repo.RecentPaywallHits(ctx, feed.ID, since)
	if err != nil {
		return err
	}

	m.logger.Info("paywall hit recorded",
		"feed", feed.URL, "url", articleURL, "recent_hits", recent, "threshold", m.threshold)

	if recent < m.threshold {
		return nil
	}

	switch m.decide(feed, recent) {
	case domain.DecisionMarkPaywalled:
		m.logger.Warn("feed flagged as paywalled", "feed", feed.URL, "recent_hits", recent)
		return m.repo.MarkFeedPaywalled(ctx, feed.ID)
	case domain.DecisionRemove:
		m.logger.Warn("feed removed after repeated paywall hits", "feed", feed.URL, "recent_hits", recent)
		return m.repo.RemoveFeed(ctx, feed.ID)
	default:
		m.logger.Info("feed kept under monitoring despite paywall hits", "feed", feed.URL)
		return nil
	}
}
