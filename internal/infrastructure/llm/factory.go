package llm

import (
	"fmt"

	"ArticleRelay/internal/config"
	"ArticleRelay/internal/ports"
)

// FromConfig selects the rewriter variant named by configuration.
func FromConfig(cfg config.RewriteConfig) (ports.Rewriter, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Timeout()), nil
	case "lmstudio":
		return NewLMStudio(cfg.Endpoint, cfg.Model, cfg.Timeout()), nil
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Timeout()), nil
	case "anthropic":
		return NewAnthropic(cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown rewrite provider %q", cfg.Provider)
	}
}
