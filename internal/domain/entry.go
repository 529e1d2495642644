package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Stage tracks how far an entry has advanced through the pipeline.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageScraped    Stage = "scraped"
	StageRewritten  Stage = "rewritten"
	StagePublished  Stage = "published"
	StageFailed     Stage = "failed"
)

var stageRank = map[Stage]int{
	StageDiscovered: 0,
	StageScraped:    1,
	StageRewritten:  2,
	StagePublished:  3,
}

// Before reports whether s precedes other on the happy path.
// Failed is terminal and ordered after everything.
func (s Stage) Before(other Stage) bool {
	if s == StageFailed {
		return false
	}
	if other == StageFailed {
		return true
	}
	return stageRank[s] < stageRank[other]
}

// Terminal reports whether an entry at this stage needs no further work.
func (s Stage) Terminal() bool {
	return s == StagePublished || s == StageFailed
}

// Entry is a candidate article produced by a source poll.
type Entry struct {
	Fingerprint string
	Title       string
	URL         string
	PublishedAt *time.Time
	Tags        []string
	Summary     string
}

// ProcessedEntry is the persisted dedup guard and stage marker for one
// article. Never deleted; one row per (feed, fingerprint).
type ProcessedEntry struct {
	ID          int64
	FeedID      *int64
	Fingerprint string
	Title       string
	URL         string
	PublishedAt *time.Time
	ProcessedAt time.Time
	Stage       Stage
	FailReason  string
	PostID      string
	ContentHash string
	Tags        []string

	// Snapshot captured at scrape time so later stages and recovery
	// never refetch the source.
	Scraped *ScrapedArticle
}

// ScrapedArticle is the extracted content of one article page.
type ScrapedArticle struct {
	Title     string
	Author    string
	Date      string
	Text      string
	Images    []string
	Paywalled bool
}

// RewrittenArticle is the AI rewriter's output for one article.
type RewrittenArticle struct {
	Title string
	Text  string
	Tags  []string
}

// RewriteCacheEntry is one immutable row of the rewrite cache, keyed by
// (content hash, provider, model).
type RewriteCacheEntry struct {
	ContentHash string
	Provider    string
	Model       string
	Title       string
	Text        string
	Tags        []string
	Metadata    string
	CreatedAt   time.Time
}

// Tag is a canonical tag with every raw spelling seen for it.
type Tag struct {
	ID             int64
	Name           string
	NormalizedName string
	RawVariants    []string
	UsageCount     int
	LastUsed       *time.Time
	Source         string
	CreatedAt      time.Time
}

// ThematicPrompt steers the rewriter toward an operator-chosen theme.
type ThematicPrompt struct {
	TagName string
	Prompt  string
}

// Fingerprint derives the stable dedup identity for an entry: the
// source's own id when it has one, else a hash of the normalized URL.
func Fingerprint(entryID, link string) string {
	if id := strings.TrimSpace(entryID); id != "" {
		return id
	}
	return URLFingerprint(link)
}

// URLFingerprint hashes a normalized URL into a dedup key.
func URLFingerprint(link string) string {
	norm := strings.ToLower(strings.TrimSpace(link))
	norm = strings.TrimRight(norm, "/")
	norm = strings.TrimPrefix(norm, "https://")
	norm = strings.TrimPrefix(norm, "http://")
	sum := sha256.Sum256([]byte(norm))
	return "url:" + hex.EncodeToString(sum[:16])
}
