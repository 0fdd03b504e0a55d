package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small general-purpose sentence embedding model.
	DefaultOllamaModel = "all-minilm"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides auto-detection (0 = detect from first response).
	Dimensions int

	BatchSize int

	// Timeout bounds each HTTP call.
	Timeout time.Duration

	Retry shoperrors.RetryConfig
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *http.Client
	cfg    OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. It does not contact the server;
// use Available for a health check.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = shoperrors.DefaultRetryConfig()
	}

	// Per-request deadlines come from context.WithTimeout in post, not
	// http.Client.Timeout, so caller contexts can cut them shorter.
	transport := &http.Transport{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}

	return &OllamaEmbedder{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in chunks of BatchSize.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, input any) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := shoperrors.RetryWithResult(ctx, e.cfg.Retry, func() (*ollamaEmbedResponse, error) {
		return e.post(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, raw := range resp.Embeddings {
		v := make([]float32, len(raw))
		for j, x := range raw {
			v[j] = float32(x)
		}
		vecs[i] = Normalize(v)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}

	e.mu.Lock()
	if e.dims == 0 {
		e.dims = len(vecs[0])
	}
	dims := e.dims
	e.mu.Unlock()

	for i, v := range vecs {
		if len(v) != dims {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dims)
		}
	}
	return vecs, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, body []byte) (*ollamaEmbedResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	slog.Debug("ollama_embed",
		slog.String("model", e.cfg.Model),
		slog.Int("vectors", len(out.Embeddings)),
		slog.Duration("elapsed", time.Since(start)))
	return &out, nil
}

// Dimensions returns the embedding dimension, 0 until the first response
// when not configured.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return "ollama:" + e.cfg.Model
}

// Available checks that the server answers a tiny embed request.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	body, _ := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: "ping"})
	_, err := e.post(ctx, body)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
