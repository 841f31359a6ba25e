package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 0.7, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 0.3, cfg.Retrieval.BM25Weight)
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 20, cfg.Retrieval.MaxResults)
	assert.True(t, cfg.Retrieval.HeaderBreadcrumbs)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadVaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
retrieval:
  vector_weight: 0.6
  bm25_weight: 0.4
  max_results: 10
llm:
  model: llama3.2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Vault.Path)
	assert.Equal(t, 0.6, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 0.4, cfg.Retrieval.BM25Weight)
	assert.Equal(t, 10, cfg.Retrieval.MaxResults)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
}

func TestLoadMissingConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Retrieval.VectorWeight)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MINDVAULT_LLM_MODEL", "mistral")
	t.Setenv("MINDVAULT_VECTOR_WEIGHT", "0.5")
	t.Setenv("MINDVAULT_BM25_WEIGHT", "0.5")
	t.Setenv("MINDVAULT_WEBHOOK_URL", "http://localhost:9000/notify")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 0.5, cfg.Retrieval.VectorWeight)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "http://localhost:9000/notify", cfg.Notifications.WebhookURL)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigName), []byte("retrieval: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "weights do not sum to one",
			mutate:  func(c *Config) { c.Retrieval.VectorWeight = 0.9 },
			wantErr: "weights must sum to 1.0",
		},
		{
			name:    "zero rrf constant",
			mutate:  func(c *Config) { c.Retrieval.RRFConstant = 0 },
			wantErr: "rrf_constant",
		},
		{
			name:    "negative context tokens",
			mutate:  func(c *Config) { c.Retrieval.ContextTokens = -1 },
			wantErr: "context_tokens",
		},
		{
			name:    "bad debounce duration",
			mutate:  func(c *Config) { c.Vault.WatchDebounce = "soon" },
			wantErr: "watch_debounce",
		},
		{
			name:    "bad reminder interval",
			mutate:  func(c *Config) { c.Scheduler.ReminderCheckInterval = "never" },
			wantErr: "reminder_check_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := New()

	d, err := cfg.WatchDebounce()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	d, err = cfg.ReminderInterval()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := New()
	cfg.LLM.Model = "custom-model"
	require.NoError(t, cfg.WriteYAML(path))

	loaded := New()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, "custom-model", loaded.LLM.Model)
}

func TestDataPaths(t *testing.T) {
	cfg := New()
	cfg.Data.Dir = "/tmp/mv"

	assert.Equal(t, filepath.Join("/tmp/mv", "mindvault.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/tmp/mv", "vectors.gob"), cfg.VectorIndexPath())
	assert.Equal(t, filepath.Join("/tmp/mv", "mindvault.lock"), cfg.LockPath())
}
