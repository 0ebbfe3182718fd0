package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ASKDB_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Database.Driver)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 3600, cfg.Schema.TTLSeconds)
	assert.Equal(t, 100, cfg.Query.RowLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ASKDB_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("ASKDB_DB_DRIVER", "postgres")
	t.Setenv("ASKDB_QUERY_ROW_LIMIT", "25")
	t.Setenv("ASKDB_SCHEMA_TTL_SECONDS", "120")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Query.RowLimit)
	assert.Equal(t, 2*time.Minute, cfg.SchemaTTL())
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	content := `{
		"llm": {"provider": "openai", "model": "gpt-4"},
		"query": {"row_limit": 50}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	t.Setenv("ASKDB_CONFIG", configPath)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 50, cfg.Query.RowLimit)
	// Defaults still fill unset fields
	assert.Equal(t, "duckdb", cfg.Database.Driver)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad driver", "ASKDB_DB_DRIVER", "oracle"},
		{"bad provider", "ASKDB_LLM_PROVIDER", "bard"},
		{"bad log level", "ASKDB_LOG_LEVEL", "loud"},
		{"bad timeout", "ASKDB_LLM_TIMEOUT", "sixty"},
		{"zero row limit", "ASKDB_QUERY_ROW_LIMIT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ASKDB_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x.json"), expandPath("~/x.json"))
	assert.Equal(t, "/tmp/x.json", expandPath("/tmp/x.json"))
}
