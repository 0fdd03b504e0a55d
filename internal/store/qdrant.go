package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig points at a Qdrant collection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// QdrantIndex implements VectorIndex against a remote Qdrant collection.
// Point ids are catalog product indices.
type QdrantIndex struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

var _ VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant. It does not create the collection; call
// EnsureCollection from the builder.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = "shoprank_products"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// EnsureCollection creates the cosine collection if it is missing.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	slog.Info("qdrant_collection_create",
		slog.String("collection", q.cfg.Collection),
		slog.Int("dims", q.cfg.Dimensions))
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.cfg.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Add upserts points keyed by product index.
func (q *QdrantIndex) Add(ctx context.Context, indices []int, vectors [][]float32) error {
	if err := checkAdd(q.cfg.Dimensions, indices, vectors); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for i, v := range vectors {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(indices[i])),
			Vectors: qdrant.NewVectors(v...),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search runs a nearest-neighbour query. Qdrant reports cosine similarity as the score.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != q.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: q.cfg.Dimensions, Got: len(query)}
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	out := make([]Neighbor, 0, len(points))
	for _, p := range points {
		out = append(out, Neighbor{
			Index:      int(p.GetId().GetNum()),
			Similarity: float64(p.GetScore()),
		})
	}
	sortNeighbors(out)
	return out, nil
}

// Len returns the collection's point count, or 0 when Qdrant is unreachable.
func (q *QdrantIndex) Len() int {
	n, err := q.client.Count(context.Background(), &qdrant.CountPoints{
		CollectionName: q.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		slog.Warn("qdrant_count_failed", slog.String("error", err.Error()))
		return 0
	}
	return int(n)
}

// Dimensions returns the vector dimension.
func (q *QdrantIndex) Dimensions() int {
	return q.cfg.Dimensions
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// Health reports the server version, or an error when Qdrant is unreachable.
func (q *QdrantIndex) Health(ctx context.Context) (string, error) {
	reply, err := q.client.HealthCheck(ctx)
	if err != nil {
		return "", err
	}
	return reply.GetVersion(), nil
}
