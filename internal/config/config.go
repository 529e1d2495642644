package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "ARTICLE_RELAY_CONFIG"
	databasePathEnv      = "DATABASE_PATH"
	rewriteAPIKeyEnv     = "REWRITE_API_KEY"
	rewriteModelEnv      = "REWRITE_MODEL"
	wordpressURLEnv      = "WORDPRESS_URL"
	wordpressUserEnv     = "WORDPRESS_USERNAME"
	wordpressPasswordEnv = "WORDPRESS_PASSWORD"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Monitor       MonitorConfig      `yaml:"monitor"`
	Paywall       PaywallConfig      `yaml:"paywall"`
	Rewrite       RewriteConfig      `yaml:"rewrite"`
	Publish       PublishConfig      `yaml:"publish"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MonitorConfig bounds feed polling and article fetching.
type MonitorConfig struct {
	MaxEntries      int    `yaml:"maxEntries"`
	FetchTimeoutSec int    `yaml:"fetchTimeoutSeconds"`
	MaxRetries      int    `yaml:"maxRetries"`
	RetryDelaySec   int    `yaml:"retryDelaySeconds"`
	UserAgent       string `yaml:"userAgent"`
	WatchIntervalMin int   `yaml:"watchIntervalMinutes"`
}

// FetchTimeout resolves the per-request timeout.
func (m MonitorConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSec) * time.Second
}

// RetryDelay resolves the base delay between fetch retries.
func (m MonitorConfig) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelaySec) * time.Second
}

// WatchInterval resolves the delay between watch-mode runs.
func (m MonitorConfig) WatchInterval() time.Duration {
	return time.Duration(m.WatchIntervalMin) * time.Minute
}

// PaywallConfig tunes the feed-health state machine.
type PaywallConfig struct {
	Threshold  int    `yaml:"threshold"`
	WindowDays int    `yaml:"windowDays"`
	Policy     string `yaml:"policy"` // ask, keep, paywall, remove
}

// Window resolves the sliding detection window.
func (p PaywallConfig) Window() time.Duration {
	return time.Duration(p.WindowDays) * 24 * time.Hour
}

// RewriteConfig selects and parameterizes the AI backend.
type RewriteConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Provider   string `yaml:"provider"` // openai, lmstudio, ollama, anthropic
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"apiKey"`
	Style      string `yaml:"style"`
	Tone       string `yaml:"tone"`
	TimeoutSec int    `yaml:"timeoutSeconds"`
}

// Timeout resolves the rewrite call timeout.
func (r RewriteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

// PublishConfig wires the WordPress target.
type PublishConfig struct {
	URL             string `yaml:"url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Status          string `yaml:"status"` // draft or publish
	TimeoutSec      int    `yaml:"timeoutSeconds"`
	MaxRetries      int    `yaml:"maxRetries"`
	RetryBackoffSec int    `yaml:"retryBackoffSeconds"`
}

// Timeout resolves the publish call timeout.
func (p PublishConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// RetryBackoff resolves the base backoff between publish retries.
func (p PublishConfig) RetryBackoff() time.Duration {
	return time.Duration(p.RetryBackoffSec) * time.Second
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(rewriteAPIKeyEnv); v != "" {
		c.Rewrite.APIKey = v
	}
	if v := os.Getenv(rewriteModelEnv); v != "" {
		c.Rewrite.Model = v
	}

	if v := os.Getenv(wordpressURLEnv); v != "" {
		c.Publish.URL = v
	}
	if v := os.Getenv(wordpressUserEnv); v != "" {
		c.Publish.Username = v
	}
	if v := os.Getenv(wordpressPasswordEnv); v != "" {
		c.Publish.Password = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Monitor.MaxEntries > 0 {
		base.Monitor.MaxEntries = override.Monitor.MaxEntries
	}
	if override.Monitor.FetchTimeoutSec > 0 {
		base.Monitor.FetchTimeoutSec = override.Monitor.FetchTimeoutSec
	}
	if override.Monitor.MaxRetries > 0 {
		base.Monitor.MaxRetries = override.Monitor.MaxRetries
	}
	if override.Monitor.RetryDelaySec > 0 {
		base.Monitor.RetryDelaySec = override.Monitor.RetryDelaySec
	}
	if override.Monitor.UserAgent != "" {
		base.Monitor.UserAgent = override.Monitor.UserAgent
	}
	if override.Monitor.WatchIntervalMin > 0 {
		base.Monitor.WatchIntervalMin = override.Monitor.WatchIntervalMin
	}

	if override.Paywall.Threshold > 0 {
		base.Paywall.Threshold = override.Paywall.Threshold
	}
	if override.Paywall.WindowDays > 0 {
		base.Paywall.WindowDays = override.Paywall.WindowDays
	}
	if override.Paywall.Policy != "" {
		base.Paywall.Policy = override.Paywall.Policy
	}

	if override.Rewrite.Provider != "" {
		base.Rewrite = override.Rewrite
	}

	if override.Publish.URL != "" {
		base.Publish = override.Publish
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "articles.db"},
		Logging:  LoggingConfig{Level: "info"},
		Monitor: MonitorConfig{
			MaxEntries:       10,
			FetchTimeoutSec:  10,
			MaxRetries:       3,
			RetryDelaySec:    5,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			WatchIntervalMin: 60,
		},
		Paywall: PaywallConfig{
			Threshold:  5,
			WindowDays: 7,
			Policy:     "ask",
		},
		Rewrite: RewriteConfig{
			Enabled:    true,
			Provider:   "openai",
			Endpoint:   "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Style:      "informative",
			Tone:       "neutral",
			TimeoutSec: 120,
		},
		Publish: PublishConfig{
			Status:          "draft",
			TimeoutSec:      30,
			MaxRetries:      3,
			RetryBackoffSec: 2,
		},
	}
}
