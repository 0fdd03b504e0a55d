package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/shoprank/shoprank/internal/embed"
)

// HNSWConfig configures the HNSW graph.
type HNSWConfig struct {
	Dimensions int

	// M is the max connections per layer (default 16).
	M int

	// EfSearch is the search-time candidate list width (default 64).
	EfSearch int
}

// HNSWIndex implements VectorIndex with the pure Go coder/hnsw graph.
// Graph keys are catalog product indices.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig
	closed bool
}

var (
	_ VectorIndex = (*HNSWIndex)(nil)
	_ Persistent  = (*HNSWIndex)(nil)
)

// hnswMetadata is persisted next to the graph in <path>.meta.
type hnswMetadata struct {
	Config HNSWConfig
	Count  int
}

// NewHNSWIndex creates an empty HNSW index.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}
	return &HNSWIndex{graph: newGraph(cfg), config: cfg}
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Add inserts vectors under their product indices.
func (s *HNSWIndex) Add(_ context.Context, indices []int, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := checkAdd(s.config.Dimensions, indices, vectors); err != nil {
		return err
	}

	nodes := make([]hnsw.Node[uint64], len(vectors))
	for i, v := range vectors {
		nodes[i] = hnsw.MakeNode(uint64(indices[i]), embed.Normalize(v))
	}
	s.graph.Add(nodes...)
	return nil
}

// Search finds the k nearest neighbours. Similarity is 1 - cosine distance.
func (s *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || s.graph.Len() == 0 {
		return []Neighbor{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := embed.Normalize(query)
	nodes := s.graph.Search(q, k)

	out := make([]Neighbor, 0, len(nodes))
	for _, node := range nodes {
		d := s.graph.Distance(q, node.Value)
		out = append(out, Neighbor{Index: int(node.Key), Similarity: 1 - float64(d)})
	}
	sortNeighbors(out)
	return out, nil
}

// Len returns the number of graph nodes.
func (s *HNSWIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.graph.Len()
}

// Dimensions returns the vector dimension.
func (s *HNSWIndex) Dimensions() int {
	return s.config.Dimensions
}

// Save writes the graph to path and its metadata to path.meta, each through a
// temp file and rename.
func (s *HNSWIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := s.graph.Export(w); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	return saveMetadata(path+".meta", hnswMetadata{Config: s.config, Count: s.graph.Len()})
}

func saveMetadata(path string, meta hnswMetadata) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("close_metadata_failed", slog.String("error", cerr.Error()))
		}
		os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadHNSWIndex opens a graph saved by Save. efSearch > 0 overrides the saved value.
func LoadHNSWIndex(path string, efSearch int) (*HNSWIndex, error) {
	meta, err := readMetadata(path + ".meta")
	if err != nil {
		return nil, err
	}
	if efSearch > 0 {
		meta.Config.EfSearch = efSearch
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	idx := NewHNSWIndex(meta.Config)
	// Import needs an io.ByteReader.
	if err := idx.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	idx.graph.EfSearch = meta.Config.EfSearch

	if got := idx.graph.Len(); got != meta.Count {
		return nil, fmt.Errorf("index holds %d vectors, metadata says %d", got, meta.Count)
	}

	slog.Debug("hnsw_index_loaded",
		slog.String("path", path),
		slog.Int("vectors", meta.Count),
		slog.Int("dims", meta.Config.Dimensions))
	return idx, nil
}

func readMetadata(path string) (hnswMetadata, error) {
	var meta hnswMetadata
	file, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("open index metadata: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode index metadata: %w", err)
	}
	return meta, nil
}

// Close releases the graph.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	return nil
}
