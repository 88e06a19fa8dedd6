package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APIREC_EMBED_MODEL", "bge-m3")
	t.Setenv("APIREC_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "bge-m3", cfg.Embedding.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 25, cfg.Embedding.BatchSize) // default untouched
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `
postgres:
  url: "postgres://localhost/apirec"
  schema: apirec
embedding:
  model: bge-m3
  dimensions: 1024
search:
  neighbors: 25
  use_llm: true
log:
  level: warn
  format: json
datasets:
  biker: testdata/biker_test.csv
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "apirec", cfg.Postgres.Schema)
	assert.Equal(t, "bge-m3", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
	assert.Equal(t, 25, cfg.Search.Neighbors)
	assert.True(t, cfg.Search.UseLLM)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "testdata/biker_test.csv", cfg.Datasets["biker"])
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("embedding:\n  model: from-file\n"), 0o644))

	t.Setenv("APIREC_EMBED_MODEL", "from-env")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Embedding.Model)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing embedding model",
			modify: func(c *Config) {
				c.Embedding.Model = ""
			},
			wantErr: true,
		},
		{
			name: "non-positive dimensions",
			modify: func(c *Config) {
				c.Embedding.Dimensions = 0
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "loud"
			},
			wantErr: true,
		},
		{
			name: "min similarity out of range",
			modify: func(c *Config) {
				c.Search.MinSimilarity = 1.5
			},
			wantErr: true,
		},
		{
			name: "non-positive worker batch",
			modify: func(c *Config) {
				c.Worker.BatchSize = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	require.NotNil(t, cfg.NewLogger())

	cfg.Log.Format = "json"
	cfg.Log.Level = "error"
	require.NotNil(t, cfg.NewLogger())
}
