package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   string
	Dimensions int
	Ollama     OllamaConfig
	CacheSize  int

	// Redis enables the shared cache when Addr is set.
	Redis RedisConfig
}

// New builds the configured embedder wrapped in a cache. A Redis cache that
// cannot be reached is logged and skipped; the LRU still applies.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var inner Embedder
	switch strings.ToLower(opts.Provider) {
	case "", ProviderStatic:
		inner = NewStaticEmbedder(opts.Dimensions)
	case ProviderOllama:
		cfg := opts.Ollama
		if cfg.Dimensions == 0 {
			cfg.Dimensions = opts.Dimensions
		}
		inner = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	var cacheOpts []CacheOption
	if opts.Redis.Addr != "" {
		rc, err := NewRedisCache(ctx, opts.Redis)
		if err != nil {
			slog.Warn("redis_cache_disabled", slog.String("error", err.Error()))
		} else {
			cacheOpts = append(cacheOpts, WithSharedCache(rc))
		}
	}

	slog.Debug("embedder_ready",
		slog.String("model", inner.ModelName()),
		slog.Int("cache_size", opts.CacheSize))
	return NewCachedEmbedder(inner, opts.CacheSize, cacheOpts...), nil
}
