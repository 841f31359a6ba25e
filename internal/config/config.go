// Package config loads and validates mindvault configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete mindvault configuration. It is constructed once at
// startup and passed explicitly into every component constructor; there is
// no process-wide cached instance.
type Config struct {
	Vault         VaultConfig         `yaml:"vault"`
	Data          DataConfig          `yaml:"data"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	LLM           LLMConfig           `yaml:"llm"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	LogLevel      string              `yaml:"log_level"`
}

// VaultConfig locates the markdown vault.
type VaultConfig struct {
	Path string `yaml:"path"`
	// IgnorePatterns use filepath.Match syntax against vault-relative paths.
	IgnorePatterns []string `yaml:"ignore_patterns"`
	WatchDebounce  string   `yaml:"watch_debounce"`
}

// DataConfig locates the on-disk index state: the SQLite database, the
// vector index file, and the writer lock.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // 0 = detect from first embedding
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"` // in-memory LRU entries
}

// LLMConfig configures the completion/extraction backend.
type LLMConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RetrievalConfig configures hybrid search. VectorWeight and BM25Weight
// must sum to 1.0.
type RetrievalConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	BM25Weight    float64 `yaml:"bm25_weight"`
	RRFConstant   int     `yaml:"rrf_constant"`
	MaxResults    int     `yaml:"max_results"`
	ContextTokens int     `yaml:"context_tokens"`
	CharsPerToken float64 `yaml:"chars_per_token"`
	// HeaderBreadcrumbs controls the [section] line above each packed chunk.
	HeaderBreadcrumbs bool `yaml:"header_breadcrumbs"`
}

// ChunkingConfig configures the markdown chunker.
type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
	MinChunkChars int `yaml:"min_chunk_chars"`
}

// SchedulerConfig configures periodic jobs.
type SchedulerConfig struct {
	BriefingTime          string `yaml:"briefing_time"` // "HH:MM" local time
	ReminderCheckInterval string `yaml:"reminder_check_interval"`
}

// NotificationsConfig configures outbound notifications.
type NotificationsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DefaultConfigName is the config file looked up in the vault root.
const DefaultConfigName = ".mindvault.yaml"

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Vault: VaultConfig{
			IgnorePatterns: []string{".obsidian/*", ".trash/*", "*.excalidraw.md"},
			WatchDebounce:  "500ms",
		},
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Embeddings: EmbeddingsConfig{
			Host:      "http://localhost:11434",
			Model:     "nomic-embed-text",
			BatchSize: 32,
			CacheSize: 1000,
		},
		LLM: LLMConfig{
			Host:        "http://localhost:11434",
			Model:       "qwen3:4b",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Retrieval: RetrievalConfig{
			VectorWeight:      0.7,
			BM25Weight:        0.3,
			RRFConstant:       60,
			MaxResults:        20,
			ContextTokens:     8000,
			CharsPerToken:     4.0,
			HeaderBreadcrumbs: true,
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: 2000,
			MinChunkChars: 50,
		},
		Scheduler: SchedulerConfig{
			BriefingTime:          "07:00",
			ReminderCheckInterval: "15m",
		},
		Notifications: NotificationsConfig{
			Enabled: false,
		},
		LogLevel: "info",
	}
}

// Load builds the effective configuration in order of increasing precedence:
// defaults, then the vault config file, then environment variables. A .env
// file in the working directory is loaded first so env overrides can live
// there.
func Load(vaultDir string) (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := New()
	if vaultDir != "" {
		cfg.Vault.Path = vaultDir
		path := filepath.Join(vaultDir, DefaultConfigName)
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges values from a YAML file over the current config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies MINDVAULT_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MINDVAULT_VAULT_PATH"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("MINDVAULT_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("MINDVAULT_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
		c.LLM.Host = v
	}
	if v := os.Getenv("MINDVAULT_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("MINDVAULT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MINDVAULT_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.VectorWeight = f
		}
	}
	if v := os.Getenv("MINDVAULT_BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.BM25Weight = f
		}
	}
	if v := os.Getenv("MINDVAULT_WEBHOOK_URL"); v != "" {
		c.Notifications.WebhookURL = v
		c.Notifications.Enabled = true
	}
	if v := os.Getenv("MINDVAULT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// behavior deep inside the retrieval pipeline.
func (c *Config) Validate() error {
	sum := c.Retrieval.VectorWeight + c.Retrieval.BM25Weight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("retrieval weights must sum to 1.0, got %.3f", sum)
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Retrieval.ContextTokens <= 0 {
		return fmt.Errorf("context_tokens must be positive, got %d", c.Retrieval.ContextTokens)
	}
	if c.Retrieval.CharsPerToken <= 0 {
		return fmt.Errorf("chars_per_token must be positive, got %.2f", c.Retrieval.CharsPerToken)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	if _, err := c.ReminderInterval(); err != nil {
		return err
	}
	return nil
}

// WatchDebounce parses the watcher debounce window.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Vault.WatchDebounce)
	if err != nil {
		return 0, fmt.Errorf("invalid watch_debounce %q: %w", c.Vault.WatchDebounce, err)
	}
	return d, nil
}

// ReminderInterval parses the reminder check interval.
func (c *Config) ReminderInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.ReminderCheckInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid reminder_check_interval %q: %w", c.Scheduler.ReminderCheckInterval, err)
	}
	return d, nil
}

// DatabasePath returns the SQLite database location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Dir, "mindvault.db")
}

// VectorIndexPath returns the persisted vector index location.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Data.Dir, "vectors.gob")
}

// LockPath returns the single-writer lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Data.Dir, "mindvault.lock")
}

// WriteYAML writes the config to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mindvault")
	}
	return filepath.Join(home, ".mindvault")
}
