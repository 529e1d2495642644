package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	assert.Equal(t, "articles.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Paywall.Threshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Paywall.Window())
	assert.Equal(t, "ask", cfg.Paywall.Policy)
	assert.Equal(t, "draft", cfg.Publish.Status)
	assert.True(t, cfg.Rewrite.Enabled)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database:
  path: /tmp/custom.db
paywall:
  threshold: 3
  windowDays: 14
  policy: remove
monitor:
  maxEntries: 25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()

	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Paywall.Threshold)
	assert.Equal(t, 14*24*time.Hour, cfg.Paywall.Window())
	assert.Equal(t, "remove", cfg.Paywall.Policy)
	assert.Equal(t, 25, cfg.Monitor.MaxEntries)

	// Untouched sections keep their defaults.
	assert.Equal(t, "draft", cfg.Publish.Status)
	assert.Equal(t, 3, cfg.Monitor.MaxRetries)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/file.db\n"), 0o644))

	t.Setenv(configPathEnv, path)
	t.Setenv(databasePathEnv, "/tmp/env.db")
	t.Setenv(wordpressURLEnv, "https://blog.example.com")
	t.Setenv(rewriteAPIKeyEnv, "sk-from-env")

	cfg := Load()

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "https://blog.example.com", cfg.Publish.URL)
	assert.Equal(t, "sk-from-env", cfg.Rewrite.APIKey)
}

func TestLoadBadFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml:::"), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.Equal(t, "articles.db", cfg.Database.Path)
}
