package domain

import "time"

// FeedKind selects the source strategy used to poll a feed.
type FeedKind string

const (
	FeedKindRSS  FeedKind = "rss"
	FeedKindSite FeedKind = "site"
)

// Feed is a monitored upstream source.
type Feed struct {
	ID             int64
	URL            string
	Name           string
	Kind           FeedKind
	IsActive       bool
	IsPaywalled    bool
	PaywallHits    int
	LastPaywallHit *time.Time
	LastChecked    *time.Time
	CreatedAt      time.Time
}

// PaywallHit is a single detected paywall block, append-only.
type PaywallHit struct {
	ID         int64
	FeedID     int64
	ArticleURL string
	HitAt      time.Time
}

// PaywallDecision resolves a feed that crossed the paywall threshold.
type PaywallDecision int

const (
	DecisionKeep PaywallDecision = iota
	DecisionMarkPaywalled
	DecisionRemove
)

// FeedStats is the per-run rollup shown by the stats command.
type FeedStats struct {
	TotalFeeds       int
	ActiveFeeds      int
	PaywalledFeeds   int
	TotalPaywallHits int
	EntriesByStage   map[Stage]int
}
