package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

// Poster publishes articles through the WordPress REST API using basic
// auth (application passwords).
type Poster struct {
	apiBase    string
	authHeader string
	httpClient *http.Client
}

var _ ports.Publisher = (*Poster)(nil)

// New builds a poster for the given site.
func New(siteURL, username, password string, timeout time.Duration) *Poster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return &Poster{
		apiBase:    strings.TrimRight(siteURL, "/") + "/wp-json/wp/v2",
		authHeader: "Basic " + auth,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type postPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type postResponse struct {
	ID int `json:"id"`
}

// Publish creates a post and returns its id. Failures come back as
// PublishError so the orchestrator can retry with backoff.
func (p *Poster) Publish(ctx context.Context, post ports.Post) (string, error) {
	status := post.Status
	if status == "" {
		status = "draft"
	}

	body, err := json.Marshal(postPayload{
		Title:   post.Title,
		Content: renderContent(post),
		Status:  status,
	})
	if err != nil {
		return "", &domain.PublishError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/posts", bytes.NewReader(body))
	if err != nil {
		return "", &domain.PublishError{Err: err}
	}
	req.Header.Set("Authorization", p.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &domain.PublishError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &domain.PublishError{
			Status: resp.Status,
			Err:    fmt.Errorf("create post: %s", strings.TrimSpace(string(payload))),
		}
	}

	var created postResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &domain.PublishError{Err: fmt.Errorf("decode response: %w", err)}
	}

	return fmt.Sprintf("%d", created.ID), nil
}

// renderContent turns the article text into post HTML, prepending an
// AI disclosure block when the text was machine-rewritten.
func renderContent(post ports.Post) string {
	var b strings.Builder

	if post.Rewritten {
		b.WriteString("<div class=\"ai-disclosure\">\n")
		b.WriteString("<p><strong>AI-Generated Content Disclosure:</strong></p>\n")
		fmt.Fprintf(&b, "<p>This article was rewritten using %s (%s). The original can be found at <a href=\"%s\">%s</a>.</p>\n",
			post.Provider, post.Model, post.SourceURL, post.SourceURL)
		b.WriteString("</div>\n\n")
	}

	for _, paragraph := range strings.Split(post.Content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", paragraph)
	}

	if len(post.Tags) > 0 {
		fmt.Fprintf(&b, "\n<p class=\"tags\">Tags: %s</p>\n", strings.Join(post.Tags, ", "))
	}

	return b.String()
}
