package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default number of query embeddings kept in memory.
const DefaultEmbeddingCacheSize = 1000

// VectorCache is a shared second-level cache, e.g. Redis, consulted on LRU misses.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEmbedder wraps an Embedder with an in-process LRU and an optional shared
// cache. Query embeddings are deterministic, so repeated queries skip the model.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	shared VectorCache
}

var _ Embedder = (*CachedEmbedder)(nil)

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithSharedCache adds a second-level cache behind the LRU.
func WithSharedCache(c VectorCache) CacheOption {
	return func(ce *CachedEmbedder) {
		ce.shared = c
	}
}

// NewCachedEmbedder creates a cached embedder wrapping inner.
func NewCachedEmbedder(inner Embedder, size int, opts ...CacheOption) *CachedEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	ce := &CachedEmbedder{inner: inner, cache: cache}
	for _, opt := range opts {
		opt(ce)
	}
	return ce
}

// CacheKey derives the cache key for text under the given model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + model))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.cache.Get(key); ok {
		return vec, true
	}
	if c.shared == nil {
		return nil, false
	}

	vec, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		slog.Warn("shared_embedding_cache_get_failed", slog.String("error", err.Error()))
		return nil, false
	}
	if ok && len(vec) == c.inner.Dimensions() {
		c.cache.Add(key, vec)
		return vec, true
	}
	return nil, false
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	c.cache.Add(key, vec)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, vec); err != nil {
		slog.Warn("shared_embedding_cache_set_failed", slog.String("error", err.Error()))
	}
}

// Embed returns a cached embedding if available, otherwise computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.inner.ModelName(), text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch checks the cache per text and embeds only the misses in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	model := c.inner.ModelName()

	for i, text := range texts {
		if vec, ok := c.lookup(ctx, CacheKey(model, text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.store(ctx, CacheKey(model, texts[idx]), fresh[j])
	}
	return results, nil
}

// Len returns the number of in-process cache entries.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close closes the inner embedder and the shared cache, if it is closable.
func (c *CachedEmbedder) Close() error {
	err := c.inner.Close()
	if closer, ok := c.shared.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
