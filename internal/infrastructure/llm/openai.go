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

// ChatClient talks to OpenAI-compatible chat-completions endpoints.
// OpenAI, LM Studio, and Ollama share the wire format; LM Studio only
// accepts user/assistant roles, so the system prompt is folded into the
// user turn for it.
type ChatClient struct {
	provider   string
	endpoint   string
	model      string
	apiKey     string
	foldSystem bool
	httpClient *http.Client
}

var _ ports.Rewriter = (*ChatClient)(nil)

// NewOpenAI builds a client against the OpenAI API.
func NewOpenAI(endpoint, model, apiKey string, timeout time.Duration) *ChatClient {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return newChatClient("openai", endpoint, model, apiKey, false, timeout)
}

// NewLMStudio builds a client against a local LM Studio server.
func NewLMStudio(endpoint, model string, timeout time.Duration) *ChatClient {
	if endpoint == "" {
		endpoint = "http://localhost:1234/v1"
	}
	// LM Studio ignores the key but requires the header to be present.
	return newChatClient("lmstudio", endpoint, model, "lm-studio", true, timeout)
}

// NewOllama builds a client against a local Ollama server's
// OpenAI-compatible endpoint.
func NewOllama(endpoint, model string, timeout time.Duration) *ChatClient {
	if endpoint == "" {
		endpoint = "http://localhost:11434/v1"
	}
	return newChatClient("ollama", endpoint, model, "", false, timeout)
}

func newChatClient(provider, endpoint, model, apiKey string, foldSystem bool, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChatClient{
		provider:   provider,
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		apiKey:     apiKey,
		foldSystem: foldSystem,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Provider names the backend for cache keying.
func (c *ChatClient) Provider() string { return c.provider }

// Model names the model for cache keying.
func (c *ChatClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Rewrite sends the article through the chat endpoint and parses the
// TITLE:/TAGS:/body protocol out of the completion.
func (c *ChatClient) Rewrite(ctx context.Context, req ports.RewriteRequest) (domain.RewrittenArticle, error) {
	prompt := buildPrompt(req)

	var messages []chatMessage
	if c.foldSystem {
		messages = []chatMessage{{Role: "user", Content: systemPrompt + "\n\n" + prompt}}
	} else {
		messages = []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: c.provider, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: c.provider, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.RewrittenArticle{}, &domain.ProviderError{
			Provider: c.provider,
			Err:      fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.RewrittenArticle{}, &domain.ProviderError{Provider: c.provider, Err: err}
	}
	if len(parsed.Choices) == 0 {
		return domain.RewrittenArticle{}, &domain.ProviderError{
			Provider: c.provider, Err: fmt.Errorf("response has no choices")}
	}

	return parseResponse(parsed.Choices[0].Message.Content, req.Title), nil
}
