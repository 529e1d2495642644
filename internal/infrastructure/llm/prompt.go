package llm

import (
	"fmt"
	"strings"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

const systemPrompt = "You are a professional article rewriter. Rewrite the given article so the meaning is preserved but the wording and structure differ. Include all key information from the original."

// buildPrompt renders one rewrite request into the user message. The
// response protocol (TITLE:/TAGS:/body) is shared by all providers.
func buildPrompt(req ports.RewriteRequest) string {
	var b strings.Builder

	style := req.Style
	if style == "" {
		style = "informative"
	}
	tone := req.Tone
	if tone == "" {
		tone = "neutral"
	}

	fmt.Fprintf(&b, "Rewrite the following article in a %s style with a %s tone.\n", style, tone)
	b.WriteString("Maintain the key information and meaning, but use different wording and structure.\n")

	if len(req.Hints) > 0 {
		b.WriteString("\nConsider these thematic guidelines when choosing focus and tags:\n")
		for _, hint := range req.Hints {
			fmt.Fprintf(&b, "- %s: %s\n", hint.TagName, hint.Prompt)
		}
	}

	fmt.Fprintf(&b, "\nOriginal Title: %s\n\nOriginal Content:\n%s\n", req.Title, req.Text)

	b.WriteString(`
Format your response exactly as follows:
TITLE: [rewritten title]
TAGS: [comma-separated tags]

[rewritten content organized in paragraphs]
`)

	return b.String()
}

// parseResponse extracts title, tags, and body from the model output,
// falling back to the original title when the model ignored the format.
func parseResponse(raw, originalTitle string) domain.RewrittenArticle {
	out := domain.RewrittenArticle{Title: originalTitle}

	var body []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "TITLE:"):
			if title := strings.TrimSpace(strings.TrimPrefix(line, "TITLE:")); title != "" {
				out.Title = title
			}
		case strings.HasPrefix(line, "TAGS:"):
			for _, tag := range strings.Split(strings.TrimPrefix(line, "TAGS:"), ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					out.Tags = append(out.Tags, tag)
				}
			}
		default:
			body = append(body, line)
		}
	}

	out.Text = strings.Join(body, "\n\n")
	return out
}
