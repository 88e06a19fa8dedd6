// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all toolkit configuration. Values come from defaults, then an
// optional YAML file, then APIREC_* environment variables (highest priority).
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`

	// Datasets maps a dataset name to its CSV path.
	Datasets map[string]string `yaml:"datasets"`
}

// PostgresConfig holds embedding-store connection settings.
type PostgresConfig struct {
	URL    string `envconfig:"APIREC_POSTGRES_URL" yaml:"url"`
	Schema string `envconfig:"APIREC_POSTGRES_SCHEMA" yaml:"schema"`
}

// EmbeddingConfig holds settings for the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	BaseURL       string `envconfig:"APIREC_EMBED_BASE_URL" yaml:"base_url"`
	APIKey        string `envconfig:"APIREC_EMBED_API_KEY" yaml:"api_key"`
	Model         string `envconfig:"APIREC_EMBED_MODEL" yaml:"model"`
	Dimensions    int    `envconfig:"APIREC_EMBED_DIM" yaml:"dimensions"`
	BatchSize     int    `envconfig:"APIREC_EMBED_BATCH_SIZE" yaml:"batch_size"`
	MaxConcurrent int    `envconfig:"APIREC_EMBED_MAX_CONCURRENT" yaml:"max_concurrent"`
	TimeoutSecs   int    `envconfig:"APIREC_EMBED_TIMEOUT_SECS" yaml:"timeout_secs"`
}

// LLMConfig holds settings for the chat model used as a second recommender.
type LLMConfig struct {
	BaseURL     string  `envconfig:"APIREC_LLM_BASE_URL" yaml:"base_url"`
	APIKey      string  `envconfig:"APIREC_LLM_API_KEY" yaml:"api_key"`
	Model       string  `envconfig:"APIREC_LLM_MODEL" yaml:"model"`
	Temperature float32 `envconfig:"APIREC_LLM_TEMPERATURE" yaml:"temperature"`
	TimeoutSecs int     `envconfig:"APIREC_LLM_TIMEOUT_SECS" yaml:"timeout_secs"`
	MaxRetries  int     `envconfig:"APIREC_LLM_MAX_RETRIES" yaml:"max_retries"`
}

// SearchConfig holds retrieval and fusion settings.
type SearchConfig struct {
	Neighbors     int     `envconfig:"APIREC_SEARCH_NEIGHBORS" yaml:"neighbors"`
	TopK          int     `envconfig:"APIREC_SEARCH_TOP_K" yaml:"top_k"`
	RRFK          int     `envconfig:"APIREC_SEARCH_RRF_K" yaml:"rrf_k"`
	MinSimilarity float32 `envconfig:"APIREC_SEARCH_MIN_SIMILARITY" yaml:"min_similarity"`
	UseLLM        bool    `envconfig:"APIREC_SEARCH_USE_LLM" yaml:"use_llm"`
}

// WorkerConfig holds embedding-backfill worker settings.
type WorkerConfig struct {
	BatchSize     int `envconfig:"APIREC_WORKER_BATCH_SIZE" yaml:"batch_size"`
	PollSecs      int `envconfig:"APIREC_WORKER_POLL_SECS" yaml:"poll_secs"`
	LockAheadSecs int `envconfig:"APIREC_WORKER_LOCK_AHEAD_SECS" yaml:"lock_ahead_secs"`
	MaxAttempts   int `envconfig:"APIREC_WORKER_MAX_ATTEMPTS" yaml:"max_attempts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"APIREC_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"APIREC_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in that order of increasing priority.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Postgres = PostgresConfig{
		Schema: "public",
	}

	cfg.Embedding = EmbeddingConfig{
		BaseURL:       "https://api.openai.com/v1",
		Model:         "text-embedding-3-small",
		Dimensions:    1536,
		BatchSize:     25,
		MaxConcurrent: 4,
		TimeoutSecs:   60,
	}

	cfg.LLM = LLMConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0,
		TimeoutSecs: 120,
		MaxRetries:  3,
	}

	cfg.Search = SearchConfig{
		Neighbors:     10,
		TopK:          10,
		RRFK:          60,
		MinSimilarity: 0,
		UseLLM:        false,
	}

	cfg.Worker = WorkerConfig{
		BatchSize:     100,
		PollSecs:      2,
		LockAheadSecs: 30,
		MaxAttempts:   10,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Embedding.Model == "" {
		errs = append(errs, "embedding model is required")
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, "embedding dimensions must be positive")
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, "embedding batch_size must be positive")
	}
	if c.Embedding.MaxConcurrent < 1 {
		errs = append(errs, "embedding max_concurrent must be positive")
	}

	if c.Search.Neighbors < 1 {
		errs = append(errs, "search neighbors must be positive")
	}
	if c.Search.TopK < 1 {
		errs = append(errs, "search top_k must be positive")
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		errs = append(errs, "search min_similarity must be between 0 and 1")
	}

	if c.Worker.BatchSize < 1 {
		errs = append(errs, "worker batch_size must be positive")
	}
	if c.Worker.MaxAttempts < 1 {
		errs = append(errs, "worker max_attempts must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// EmbeddingTimeout returns the embedding request timeout as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

// LLMTimeout returns the chat request timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// NewLogger builds a slog.Logger honoring the configured level and format.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
