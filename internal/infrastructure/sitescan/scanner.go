package sitescan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// Scanner implements the site source strategy: discover post links on a
// site's front page for feeds without RSS.
type Scanner struct {
	client    *http.Client
	userAgent string
	maxLinks  int
	logger    *slog.Logger
}

var _ ports.EntrySource = (*Scanner)(nil)

// New wires an HTTP client; maxLinks bounds one poll.
func New(client *http.Client, userAgent string, maxLinks int, logger *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = "ArticleRelay/1.0"
	}
	if maxLinks <= 0 {
		maxLinks = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{client: client, userAgent: userAgent, maxLinks: maxLinks, logger: logger}
}

// Kind identifies the strategy inside the registry.
func (s *Scanner) Kind() domain.FeedKind {
	return domain.FeedKindSite
}

// Poll loads the front page and collects unique article links from the
// main posts area, skipping navigation, tag, and category links.
func (s *Scanner) Poll(ctx context.Context, feed domain.Feed) ([]domain.Entry, error) {
	base, err := url.Parse(feed.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid site url %s: %w", feed.URL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch site %s: %w", feed.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site %s returned %s", feed.URL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse site %s: %w", feed.URL, err)
	}

	scope := doc.Find("main, .content, .posts").First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	seen := map[string]struct{}{}
	var entries []domain.Entry

	scope.Find("article a[href], .post a[href], .entry a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		link := absolutize(base, href)
		if link == "" || utilityLink(link) {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		title := strings.TrimSpace(sel.Text())
		entries = append(entries, domain.Entry{
			Fingerprint: domain.URLFingerprint(link),
			Title:       title,
			URL:         link,
		})
		return len(entries) < s.maxLinks
	})

	s.logger.Debug("site scanned", "site", feed.URL, "links", len(entries))
	return entries, nil
}

func absolutize(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var utilityMarkers = []string{
	"/tag/", "/category/", "/author/", "/wp-", "page=", "#", "feed",
}

func utilityLink(link string) bool {
	lower := strings.ToLower(link)
	for _, marker := range utilityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
