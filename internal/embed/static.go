package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings by feature hashing word tokens and
// character trigrams. It needs no network or model download and is fully
// deterministic, which makes it the default provider for builds and tests.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// Words that carry no product meaning in titles and descriptions.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "for": true, "with": true,
	"of": true, "in": true, "to": true, "by": true, "your": true, "this": true,
	"from": true, "is": true, "it": true, "on": true, "or": true, "that": true,
}

// NewStaticEmbedder creates a static embedder. dims <= 0 uses StaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates the embedding for a single text.
// Blank text maps to the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return Normalize(e.vector(trimmed)), nil
}

func (e *StaticEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)

	for _, tok := range tokenize(text) {
		v[hashIndex(tok, e.dims)] += tokenWeight
	}

	// Trigrams are taken per word so "wireless headphones" and
	// "headphones wireless" embed identically.
	for _, word := range strings.FieldsFunc(strings.ToLower(text), notAlnum) {
		for _, g := range trigrams(word) {
			v[hashIndex(g, e.dims)] += ngramWeight
		}
	}
	return v
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// tokenize lowercases, splits on non-alphanumerics, drops stop words, and
// folds simple plurals ("headphones" -> "headphone").
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), notAlnum)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, singular(w))
	}
	return tokens
}

func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	default:
		return w
	}
}

func trigrams(word string) []string {
	runes := []rune(word)
	if len(runes) < ngramSize {
		return nil
	}
	out := make([]string, 0, len(runes)-ngramSize+1)
	for i := 0; i+ngramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+ngramSize]))
	}
	return out
}

func hashIndex(s string, size int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dims)
}

// Available reports whether the embedder is open.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
