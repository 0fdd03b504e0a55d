package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"SHOPRANK_DATA_DIR", "SHOPRANK_EMBED_PROVIDER", "SHOPRANK_OLLAMA_HOST",
		"SHOPRANK_REDIS_ADDR", "SHOPRANK_INDEX_BACKEND", "SHOPRANK_QDRANT_HOST",
		"SHOPRANK_QDRANT_PORT", "SHOPRANK_EXPLAIN_STRATEGY", "SHOPRANK_SERVER_ADDR",
		"SHOPRANK_LOG_LEVEL", "GROQ_API_KEY",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_DefaultsAreValid(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Search.DefaultTopK)
	assert.Equal(t, 100, cfg.Search.MaxTopK)
	assert.Equal(t, 100, cfg.Search.PoolSize)
	assert.Equal(t, "hnsw", cfg.Index.Backend)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 60, cfg.Explain.MaxTokens)
}

func TestLoad_NoFiles_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
	assert.Empty(t, cfg.Explain.APIKey)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	// Given: a user config and a project config that disagree
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "shoprank", "config.yaml"), `
search:
  pool_size: 50
  weights:
    rating_score: 0.3
server:
  addr: ":9000"
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), `
server:
  addr: ":9100"
search:
  weights:
    price_score: 0.1
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins per field, user values survive elsewhere
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Search.PoolSize)
	assert.Equal(t, map[string]float64{"rating_score": 0.3, "price_score": 0.1}, cfg.Search.Weights)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "index:\n  backend: flat\n")
	t.Setenv("SHOPRANK_INDEX_BACKEND", "qdrant")
	t.Setenv("SHOPRANK_QDRANT_PORT", "7000")
	t.Setenv("SHOPRANK_DATA_DIR", "/srv/catalog")
	t.Setenv("GROQ_API_KEY", "secret")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.Index.Backend)
	assert.Equal(t, 7000, cfg.Index.Qdrant.Port)
	assert.Equal(t, "/srv/catalog", cfg.Data.Dir)
	assert.Equal(t, "secret", cfg.Explain.APIKey)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "search: [unclosed")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidValueRejected(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "embeddings:\n  provider: openai\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings.provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }, "data.dir"},
		{"default top_k above max", func(c *Config) { c.Search.DefaultTopK = 101 }, "search.default_top_k"},
		{"zero pool", func(c *Config) { c.Search.PoolSize = -1 }, "search.pool_size"},
		{"negative weight", func(c *Config) { c.Search.Weights = map[string]float64{"price_score": -0.1} }, "search.weights.price_score"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }, "index.backend"},
		{"unknown strategy", func(c *Config) { c.Explain.Strategy = "magic" }, "explain.strategy"},
		{"bad duration", func(c *Config) { c.Explain.Timeout = "five seconds" }, "explain.timeout"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "server.log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("-1s", time.Minute))
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Server.Addr = ":7777"
	cfg.Explain.APIKey = "never-persisted"

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))
	data, err := os.ReadFile(filepath.Join(dir, ProjectConfigName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-persisted")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7777", loaded.Server.Addr)
}
