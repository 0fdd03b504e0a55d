// Package config loads shoprank configuration from layered YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".shoprank.yaml"

// Config is the complete shoprank configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" json:"data"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Explain    ExplainConfig    `yaml:"explain" json:"explain"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// DataConfig locates the catalog artifacts.
type DataConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// SearchConfig holds request defaults and the default ranking weights.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" json:"max_top_k"`
	PoolSize    int `yaml:"pool_size" json:"pool_size"`

	// Weights override individual default weights. Keys are validated by the engine.
	Weights map[string]float64 `yaml:"weights" json:"weights"`
}

// EmbeddingsConfig configures the embedding provider and its caches.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // static | ollama
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`

	// RedisAddr enables the shared query-embedding cache when set.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
}

// IndexConfig selects and tunes the vector index.
type IndexConfig struct {
	Backend  string       `yaml:"backend" json:"backend"` // hnsw | flat | qdrant
	M        int          `yaml:"m" json:"m"`
	EfSearch int          `yaml:"ef_search" json:"ef_search"`
	Qdrant   QdrantConfig `yaml:"qdrant" json:"qdrant"`
}

// QdrantConfig points at a Qdrant collection.
type QdrantConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Collection string `yaml:"collection" json:"collection"`
	APIKey     string `yaml:"api_key" json:"-"`
	UseTLS     bool   `yaml:"use_tls" json:"use_tls"`
}

// ExplainConfig configures explanation generation.
type ExplainConfig struct {
	Strategy    string  `yaml:"strategy" json:"strategy"` // template | llm
	URL         string  `yaml:"llm_url" json:"llm_url"`
	Model       string  `yaml:"llm_model" json:"llm_model"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	Timeout     string  `yaml:"timeout" json:"timeout"`
	Concurrency int     `yaml:"concurrency" json:"concurrency"`

	// Circuit breaker around the completion service.
	BreakerMaxFailures  int    `yaml:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerResetTimeout string `yaml:"breaker_reset_timeout" json:"breaker_reset_timeout"`

	// APIKey comes from GROQ_API_KEY only and is never written to disk.
	APIKey string `yaml:"-" json:"-"`
}

// ServerConfig configures the HTTP server and logging.
type ServerConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  string `yaml:"idle_timeout" json:"idle_timeout"`
	LogLevel     string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Data: DataConfig{Dir: "data"},
		Search: SearchConfig{
			DefaultTopK: 20,
			MaxTopK:     100,
			PoolSize:    100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "all-minilm",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1000,
		},
		Index: IndexConfig{
			Backend:  "hnsw",
			M:        16,
			EfSearch: 64,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "shoprank_products",
			},
		},
		Explain: ExplainConfig{
			Strategy:            "llm",
			URL:                 "https://api.groq.com/openai/v1/chat/completions",
			Model:               "llama-3.1-8b-instant",
			MaxTokens:           60,
			Temperature:         0.7,
			Timeout:             "5s",
			Concurrency:         8,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: "30s",
		},
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  "10s",
			WriteTimeout: "30s",
			IdleTimeout:  "60s",
			LogLevel:     "info",
		},
	}
}

// GetUserConfigPath returns the user config file path:
// $XDG_CONFIG_HOME/shoprank/config.yaml or ~/.config/shoprank/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shoprank", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "shoprank", "config.yaml")
	}
	return filepath.Join(home, ".config", "shoprank", "config.yaml")
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load resolves configuration in increasing precedence:
//  1. defaults
//  2. user config
//  3. .shoprank.yaml in dir
//  4. SHOPRANK_* environment variables and GROQ_API_KEY
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(o *Config) {
	setString(&c.Data.Dir, o.Data.Dir)

	setInt(&c.Search.DefaultTopK, o.Search.DefaultTopK)
	setInt(&c.Search.MaxTopK, o.Search.MaxTopK)
	setInt(&c.Search.PoolSize, o.Search.PoolSize)
	if len(o.Search.Weights) > 0 {
		if c.Search.Weights == nil {
			c.Search.Weights = make(map[string]float64, len(o.Search.Weights))
		}
		for k, v := range o.Search.Weights {
			c.Search.Weights[k] = v
		}
	}

	setString(&c.Embeddings.Provider, o.Embeddings.Provider)
	setString(&c.Embeddings.Model, o.Embeddings.Model)
	setInt(&c.Embeddings.Dimensions, o.Embeddings.Dimensions)
	setString(&c.Embeddings.OllamaHost, o.Embeddings.OllamaHost)
	setInt(&c.Embeddings.BatchSize, o.Embeddings.BatchSize)
	setInt(&c.Embeddings.CacheSize, o.Embeddings.CacheSize)
	setString(&c.Embeddings.RedisAddr, o.Embeddings.RedisAddr)

	setString(&c.Index.Backend, o.Index.Backend)
	setInt(&c.Index.M, o.Index.M)
	setInt(&c.Index.EfSearch, o.Index.EfSearch)
	setString(&c.Index.Qdrant.Host, o.Index.Qdrant.Host)
	setInt(&c.Index.Qdrant.Port, o.Index.Qdrant.Port)
	setString(&c.Index.Qdrant.Collection, o.Index.Qdrant.Collection)
	setString(&c.Index.Qdrant.APIKey, o.Index.Qdrant.APIKey)
	if o.Index.Qdrant.UseTLS {
		c.Index.Qdrant.UseTLS = true
	}

	setString(&c.Explain.Strategy, o.Explain.Strategy)
	setString(&c.Explain.URL, o.Explain.URL)
	setString(&c.Explain.Model, o.Explain.Model)
	setInt(&c.Explain.MaxTokens, o.Explain.MaxTokens)
	if o.Explain.Temperature != 0 {
		c.Explain.Temperature = o.Explain.Temperature
	}
	setString(&c.Explain.Timeout, o.Explain.Timeout)
	setInt(&c.Explain.Concurrency, o.Explain.Concurrency)
	setInt(&c.Explain.BreakerMaxFailures, o.Explain.BreakerMaxFailures)
	setString(&c.Explain.BreakerResetTimeout, o.Explain.BreakerResetTimeout)

	setString(&c.Server.Addr, o.Server.Addr)
	setString(&c.Server.ReadTimeout, o.Server.ReadTimeout)
	setString(&c.Server.WriteTimeout, o.Server.WriteTimeout)
	setString(&c.Server.IdleTimeout, o.Server.IdleTimeout)
	setString(&c.Server.LogLevel, o.Server.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHOPRANK_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("SHOPRANK_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SHOPRANK_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SHOPRANK_REDIS_ADDR"); v != "" {
		c.Embeddings.RedisAddr = v
	}
	if v := os.Getenv("SHOPRANK_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("SHOPRANK_QDRANT_HOST"); v != "" {
		c.Index.Qdrant.Host = v
	}
	if v := os.Getenv("SHOPRANK_QDRANT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Index.Qdrant.Port = p
		}
	}
	if v := os.Getenv("SHOPRANK_EXPLAIN_STRATEGY"); v != "" {
		c.Explain.Strategy = v
	}
	if v := os.Getenv("SHOPRANK_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SHOPRANK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	c.Explain.APIKey = os.Getenv("GROQ_API_KEY")
}

// Validate checks enumerations, bounds and durations.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}

	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("search.max_top_k must be positive, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and %d, got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Search.PoolSize < 1 {
		return fmt.Errorf("search.pool_size must be positive, got %d", c.Search.PoolSize)
	}
	for k, v := range c.Search.Weights {
		if v < 0 {
			return fmt.Errorf("search.weights.%s must be non-negative, got %g", k, v)
		}
	}

	if !oneOf(c.Embeddings.Provider, "static", "ollama") {
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 1 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if !oneOf(c.Index.Backend, "hnsw", "flat", "qdrant") {
		return fmt.Errorf("index.backend must be 'hnsw', 'flat', or 'qdrant', got %s", c.Index.Backend)
	}

	if !oneOf(c.Explain.Strategy, "template", "llm") {
		return fmt.Errorf("explain.strategy must be 'template' or 'llm', got %s", c.Explain.Strategy)
	}
	if c.Explain.MaxTokens < 1 {
		return fmt.Errorf("explain.max_tokens must be positive, got %d", c.Explain.MaxTokens)
	}

	durations := map[string]string{
		"explain.timeout":               c.Explain.Timeout,
		"explain.breaker_reset_timeout": c.Explain.BreakerResetTimeout,
		"server.read_timeout":           c.Server.ReadTimeout,
		"server.write_timeout":          c.Server.WriteTimeout,
		"server.idle_timeout":           c.Server.IdleTimeout,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s must be a duration like '5s', got %q", name, v)
		}
	}

	if !oneOf(strings.ToLower(c.Server.LogLevel), "debug", "info", "warn", "error") {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// Duration parses a validated duration string, returning def when it is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
