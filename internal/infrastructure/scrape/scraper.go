package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

const minParagraphLength = 20

// Scraper fetches article pages and extracts their content, reporting
// a paywall signal when the page looks blocked.
type Scraper struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ ports.Scraper = (*Scraper)(nil)

// New wires an HTTP client; a nil client gets a 10s timeout default.
func New(client *http.Client, userAgent string, logger *slog.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = "ArticleRelay/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{client: client, userAgent: userAgent, logger: logger}
}

// Fetch downloads and extracts one article. Network and parse failures
// come back as ScrapeError; a paywalled page is a successful fetch with
// the Paywalled flag set.
func (s *Scraper) Fetch(ctx context.Context, url string) (domain.ScrapedArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ScrapedArticle{}, &domain.ScrapeError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ScrapedArticle{}, &domain.ScrapeError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ScrapedArticle{}, &domain.ScrapeError{
			URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.ScrapedArticle{}, &domain.ScrapeError{URL: url, Err: err}
	}

	art := extract(doc)
	art.Paywalled = detectPaywall(doc)
	if art.Paywalled {
		s.logger.Info("paywall detected", "url", url)
	}
	return art, nil
}

func extract(doc *goquery.Document) domain.ScrapedArticle {
	var art domain.ScrapedArticle

	art.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	if art.Title == "" {
		art.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	art.Author = strings.TrimSpace(doc.Find(".author, .byline, a[rel=\"author\"]").First().Text())
	art.Date = strings.TrimSpace(doc.Find("time").First().AttrOr("datetime", ""))

	paragraphs := collectParagraphs(doc.Find("article, main, .entry-content, .post-content, .article-content").First())
	if len(paragraphs) == 0 {
		paragraphs = collectParagraphs(doc.Selection)
	}
	art.Text = strings.Join(paragraphs, "\n\n")

	doc.Find("article img, main img, .entry-content img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			art.Images = append(art.Images, src)
		}
	})

	return art
}

func collectParagraphs(sel *goquery.Selection) []string {
	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) < minParagraphLength {
			return
		}
		if footerLine(text) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	return paragraphs
}

func footerLine(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "first appeared on") || strings.HasPrefix(lower, "the post ")
}

var paywallPhrases = []string{
	"subscribe to read",
	"subscribe to continue",
	"subscribe for full access",
	"subscriber exclusive",
	"subscribers only",
	"members only",
	"premium content",
	"premium article",
	"sign up to read",
	"sign up to continue",
	"unlimited access",
	"digital subscription",
}

var paywallSelectors = []string{
	".paywall", "#paywall",
	".premium", "#premium",
	".subscriber", "#subscriber",
	".members-only", "#members-only",
}

// detectPaywall scans for indicator phrases and the class/id names
// paywall overlays commonly use. Heuristic by nature; the health
// manager absorbs occasional noise through its threshold.
func detectPaywall(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Text())
	for _, phrase := range paywallPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	for _, selector := range paywallSelectors {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if strings.TrimSpace(sel.Text()) != "" {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}

	return false
}
