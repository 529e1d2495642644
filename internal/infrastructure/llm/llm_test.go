package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRelay/internal/config"
	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

func TestParseResponse(t *testing.T) {
	raw := "TITLE: A Fresh Take\nTAGS: go, concurrency , \n\nFirst paragraph.\n\nSecond paragraph."
	out := parseResponse(raw, "Original Title")

	assert.Equal(t, "A Fresh Take", out.Title)
	assert.Equal(t, []string{"go", "concurrency"}, out.Tags)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", out.Text)
}

func TestParseResponseFallsBackToOriginalTitle(t *testing.T) {
	out := parseResponse("Just body text, no protocol lines at all.", "Original Title")

	assert.Equal(t, "Original Title", out.Title)
	assert.Empty(t, out.Tags)
	assert.Equal(t, "Just body text, no protocol lines at all.", out.Text)
}

func TestBuildPromptIncludesHints(t *testing.T) {
	prompt := buildPrompt(ports.RewriteRequest{
		Title: "T",
		Text:  "Body",
		Style: "casual",
		Tone:  "upbeat",
		Hints: []domain.ThematicPrompt{{TagName: "golang", Prompt: "Focus on concurrency."}},
	})

	assert.Contains(t, prompt, "casual style")
	assert.Contains(t, prompt, "upbeat tone")
	assert.Contains(t, prompt, "golang: Focus on concurrency.")
	assert.Contains(t, prompt, "Original Title: T")
	assert.Contains(t, prompt, "TITLE:")
}

func completionHandler(t *testing.T, gotReq *chatRequest, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(gotReq))

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestChatClientRewrite(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		completionHandler(t, &gotReq, "TITLE: Redone\nTAGS: x\n\nNew body.")(w, r)
	}))
	defer srv.Close()

	client := NewOpenAI(srv.URL, "gpt-4o-mini", "sk-test", time.Second)
	out, err := client.Rewrite(context.Background(), ports.RewriteRequest{Title: "Old", Text: "Body"})
	require.NoError(t, err)

	assert.Equal(t, "Redone", out.Title)
	assert.Equal(t, "New body.", out.Text)
	assert.Equal(t, "Bearer sk-test", gotAuth)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
}

func TestLMStudioFoldsSystemPrompt(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(completionHandler(t, &gotReq, "body"))
	defer srv.Close()

	client := NewLMStudio(srv.URL, "local-model", time.Second)
	_, err := client.Rewrite(context.Background(), ports.RewriteRequest{Title: "T", Text: "B"})
	require.NoError(t, err)

	require.Len(t, gotReq.Messages, 1, "single user turn only")
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, systemPrompt)
}

func TestChatClientErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAI(srv.URL, "gpt-4o-mini", "sk-test", time.Second)
	_, err := client.Rewrite(context.Background(), ports.RewriteRequest{Title: "T", Text: "B"})
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "openai", provErr.Provider)
}

func TestAnthropicRewrite(t *testing.T) {
	var gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")

		resp := map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "TITLE: Claude Take\n\nRewritten body."},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewAnthropic(srv.URL, "claude-sonnet", "key-123", time.Second)
	out, err := client.Rewrite(context.Background(), ports.RewriteRequest{Title: "Old", Text: "Body"})
	require.NoError(t, err)

	assert.Equal(t, "Claude Take", out.Title)
	assert.Equal(t, "Rewritten body.", out.Text)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, "key-123", gotKey)
}

func TestFromConfig(t *testing.T) {
	for _, provider := range []string{"openai", "lmstudio", "ollama", "anthropic"} {
		rw, err := FromConfig(config.RewriteConfig{Provider: provider, Model: "m"})
		require.NoError(t, err, provider)
		assert.Equal(t, provider, rw.Provider())
	}

	_, err := FromConfig(config.RewriteConfig{Provider: "mystery"})
	assert.Error(t, err)
}
