package rss

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1"

// Poller implements the rss source strategy: fetch a feed document with
// retries and yield its entries in feed order.
type Poller struct {
	client     *http.Client
	maxEntries int
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     *slog.Logger
}

var _ ports.EntrySource = (*Poller)(nil)

// Options tunes a Poller; zero values fall back to defaults.
type Options struct {
	Client     *http.Client
	MaxEntries int
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// NewPoller wires an HTTP client and polling bounds.
func NewPoller(opts Options, logger *slog.Logger) *Poller {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ArticleRelay/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:     opts.Client,
		maxEntries: opts.MaxEntries,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		userAgent:  opts.UserAgent,
		logger:     logger,
	}
}

// Kind identifies the strategy inside the registry.
func (p *Poller) Kind() domain.FeedKind {
	return domain.FeedKindRSS
}

// Poll fetches and decodes the feed, returning at most maxEntries
// entries in the order the feed provides them.
func (p *Poller) Poll(ctx context.Context, feed domain.Feed) ([]domain.Entry, error) {
	body, err := p.fetch(ctx, feed.URL)
	if err != nil {
		return nil, err
	}

	entries, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}

	if len(entries) > p.maxEntries {
		entries = entries[:p.maxEntries]
	}
	p.logger.Debug("feed polled", "feed", feed.URL, "entries", len(entries))
	return entries, nil
}

// fetch retrieves the feed document with growing delays between
// retries. 403 responses swap to a mobile user agent; 429 waits longer.
func (p *Poller) fetch(ctx context.Context, url string) ([]byte, error) {
	userAgent := p.userAgent
	var lastErr error

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(attempt+1)
			p.logger.Debug("retrying feed fetch", "url", url, "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return body, nil
		case http.StatusForbidden:
			resp.Body.Close()
			lastErr = fmt.Errorf("feed returned %s", resp.Status)
			userAgent = mobileUserAgent
		case http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("feed returned %s", resp.Status)
			select {
			case <-time.After(p.retryDelay * 5):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("feed not found: %s", url)
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("feed returned %s", resp.Status)
		}
	}

	return nil, fmt.Errorf("fetch feed %s: %w", url, lastErr)
}

// rssDocument covers RSS 2.0; atomDocument covers Atom. The pack of
// formats is small and fixed, so both are decoded directly.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
}

type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
	Summary string `xml:"summary"`
	Links   []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

func decodeFeed(body []byte) ([]domain.Entry, error) {
	var rssDoc rssDocument
	if err := xml.Unmarshal(body, &rssDoc); err == nil && len(rssDoc.Channel.Items) > 0 {
		return fromRSS(rssDoc), nil
	}

	var atomDoc atomDocument
	if err := xml.Unmarshal(body, &atomDoc); err == nil && len(atomDoc.Entries) > 0 {
		return fromAtom(atomDoc), nil
	}

	return nil, fmt.Errorf("document is neither RSS nor Atom")
}

func fromRSS(doc rssDocument) []domain.Entry {
	entries := make([]domain.Entry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		entries = append(entries, domain.Entry{
			Fingerprint: domain.Fingerprint(item.GUID, item.Link),
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: parseFeedTime(item.PubDate),
			Tags:        cleanTags(item.Categories),
			Summary:     strings.TrimSpace(item.Description),
		})
	}
	return entries
}

func fromAtom(doc atomDocument) []domain.Entry {
	entries := make([]domain.Entry, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		link := ""
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		tags := make([]string, 0, len(entry.Categories))
		for _, c := range entry.Categories {
			if c.Term != "" {
				tags = append(tags, c.Term)
			}
		}

		entries = append(entries, domain.Entry{
			Fingerprint: domain.Fingerprint(entry.ID, link),
			Title:       strings.TrimSpace(entry.Title),
			URL:         strings.TrimSpace(link),
			PublishedAt: parseFeedTime(entry.Updated),
			Tags:        tags,
			Summary:     strings.TrimSpace(entry.Summary),
		})
	}
	return entries
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func parseFeedTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func cleanTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
