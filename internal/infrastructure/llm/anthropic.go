package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic messages API, which differs from
// the chat-completions shape in auth headers and response framing.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Rewriter = (*AnthropicClient)(nil)

// NewAnthropic builds a client against the Anthropic API.
func NewAnthropic(endpoint, model, apiKey string, timeout time.Duration) *AnthropicClient {
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnthropicClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Provider names the backend for cache keying.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Model names the model for cache keying.
func (c *AnthropicClient) Model() string { return c.model }

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Rewrite sends the article through the messages endpoint.
func (c *AnthropicClient) Rewrite(ctx context.Context, req ports.RewriteRequest) (domain.RewrittenArticle, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: buildPrompt(req)}},
	})
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: "anthropic", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: "anthropic", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: "anthropic", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.RewrittenArticle{}, &domain.ProviderError{
			Provider: "anthropic",
			Err:      fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: "anthropic", Err: err}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.RewrittenArticle{}, &domain.ProviderError{
			Provider: "anthropic", Err: fmt.Errorf("response has no text content")}
	}

	return parseResponse(text.String(), req.Title), nil
}
