package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

type fixedEmbedder struct {
	vec   []float32
	err   error
	model string
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }
func (f fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}
func (f fixedEmbedder) Dimensions() int                { return len(f.vec) }
func (f fixedEmbedder) ModelName() string              { return f.model }
func (f fixedEmbedder) Available(context.Context) bool { return f.err == nil }
func (f fixedEmbedder) Close() error                   { return nil }

func newTestServer(t *testing.T, embedder fixedEmbedder) *Server {
	t.Helper()
	products := []catalog.Product{
		{ID: "P0001", Title: "Sony Wireless Headphones", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Sony", Price: 299, Rating: 4.8, ReviewCount: 900, InStock: true, PopularityScore: 0.9},
		{ID: "P0002", Title: "JBL Bluetooth Speaker", Category: "Electronics", Subcategory: "Speakers",
			Brand: "JBL", Price: 99, Rating: 4.1, ReviewCount: 300, InStock: true, PopularityScore: 0.6},
		{ID: "P0003", Title: "Nike Running Shoes", Category: "Clothing", Subcategory: "Shoes",
			Brand: "Nike", Price: 120, Rating: 4.4, ReviewCount: 500, InStock: true, PopularityScore: 0.7},
		{ID: "P0004", Title: "Anker Earbuds", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Anker", Price: 25, Rating: 3.9, ReviewCount: 80, InStock: false, PopularityScore: 0.3},
	}
	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}, {0.6, 0.8}}
	cat, err := catalog.New(products, catalog.ComputeFeatures(products), catalog.NewMapping(products), vectors)
	require.NoError(t, err)
	idx, err := store.NewFlatIndexFrom(cat.Embeddings())
	require.NoError(t, err)

	engine, err := search.NewEngine(cat, embedder, idx, search.DefaultEngineConfig())
	require.NoError(t, err)
	s, err := NewServer(engine, recommend.New(cat, idx), embedder)
	require.NoError(t, err)
	return s
}

func healthy() fixedEmbedder {
	return fixedEmbedder{vec: []float32{1, 0}, model: "nomic-embed-text"}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	s := newTestServer(t, healthy())

	names := make([]string, 0)
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
	}

	assert.Equal(t, []string{"search", "similar", "complementary", "product", "catalog_status"}, names)
}

func TestServer_CallTool_Search(t *testing.T) {
	// Given: a catalog where P0001 matches the query vector exactly
	s := newTestServer(t, healthy())

	// When
	res, err := s.CallTool(context.Background(), "search", map[string]any{"query": "wireless headphones", "top_k": float64(2)})

	// Then: top result is explained and bounded
	require.NoError(t, err)
	out, ok := res.(SearchOutput)
	require.True(t, ok)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "P0001", out.Results[0].ProductID)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.NotEmpty(t, out.Results[0].Explanation)
	assert.False(t, out.Results[0].AIGenerated)
	assert.NotEmpty(t, out.Results[0].Factors)
}

func TestToSearchOutput_KeepsExplanationProvenance(t *testing.T) {
	// Given: a response whose explanation came from the LLM
	resp := &search.Response{
		Query:        "headphones",
		TotalResults: 1,
		Results: []search.Result{{
			Rank:    1,
			Product: catalog.Product{ID: "P0001", Title: "Sony Wireless Headphones"},
			Explanation: &explain.Explanation{
				Short:           "Top match for headphones",
				Highlights:      []string{"Top rated"},
				DetailedFactors: map[string]string{"rating": "4.8 stars"},
				AIGenerated:     true,
			},
		}},
	}

	// When
	out := toSearchOutput(resp)

	// Then: callers can tell LLM text from template text
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].AIGenerated)
	assert.Equal(t, map[string]string{"rating": "4.8 stars"}, out.Results[0].Factors)
	assert.Equal(t, "Top match for headphones", out.Results[0].Explanation)
}

func TestServer_CallTool_SearchClampsTopK(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.CallTool(context.Background(), "search", map[string]any{"query": "speaker", "top_k": 500})

	require.NoError(t, err)
	assert.Len(t, res.(SearchOutput).Results, 4)
}

func TestServer_CallTool_SearchWithoutExplanations(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.CallTool(context.Background(), "search", map[string]any{"query": "shoes", "explain": false})

	require.NoError(t, err)
	for _, r := range res.(SearchOutput).Results {
		assert.Empty(t, r.Explanation)
	}
}

func TestServer_CallTool_SearchErrors(t *testing.T) {
	s := newTestServer(t, healthy())

	cases := []struct {
		name string
		args map[string]any
		code int
	}{
		{"empty query", map[string]any{"query": ""}, ErrCodeInvalidParams},
		{"whitespace query", map[string]any{"query": "   "}, ErrCodeInvalidParams},
		{"wrong type", map[string]any{"query": 42}, ErrCodeInvalidParams},
		{"unknown weight", map[string]any{"query": "shoes", "weights": map[string]any{"vibes": 1}}, ErrCodeInvalidParams},
		{"negative budget", map[string]any{"query": "shoes", "budget": -1}, ErrCodeInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CallTool(context.Background(), "search", tc.args)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tc.code, mcpErr.Code)
		})
	}
}

func TestServer_CallTool_SearchRetrievalUnavailable(t *testing.T) {
	s := newTestServer(t, fixedEmbedder{vec: []float32{1, 0}, err: errors.New("ollama down"), model: "x"})

	_, err := s.CallTool(context.Background(), "search", map[string]any{"query": "headphones"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeRetrievalUnavailable, mcpErr.Code)
}

func TestServer_CallTool_Similar(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.CallTool(context.Background(), "similar", map[string]any{"product_id": "P0001", "top_k": 2})

	require.NoError(t, err)
	out := res.(SimilarOutput)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "P0002", out.Items[0].ProductID)
	for _, it := range out.Items {
		assert.NotEqual(t, "P0001", it.ProductID)
	}
}

func TestServer_CallTool_UnknownProduct(t *testing.T) {
	s := newTestServer(t, healthy())

	for _, tool := range []string{"similar", "complementary", "product"} {
		t.Run(tool, func(t *testing.T) {
			_, err := s.CallTool(context.Background(), tool, map[string]any{"product_id": "P9999"})

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
			assert.Contains(t, mcpErr.Message, "P9999")
		})
	}
}

func TestServer_CallTool_Complementary(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.CallTool(context.Background(), "complementary", map[string]any{"product_id": "P0001"})

	require.NoError(t, err)
	out := res.(ComplementaryOutput)
	require.NotEmpty(t, out.Items)
	assert.LessOrEqual(t, len(out.Items), complementaryDefault)
}

func TestServer_CallTool_Product(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.CallTool(context.Background(), "product", map[string]any{"product_id": "P0003"})

	require.NoError(t, err)
	out := res.(ProductOutput)
	assert.Equal(t, "Nike Running Shoes", out.Title)
	assert.InDelta(t, 0.7, out.PopularityScore, 1e-9)
}

func TestServer_CallTool_CatalogStatus(t *testing.T) {
	t.Run("semantic embedder", func(t *testing.T) {
		s := newTestServer(t, healthy())

		res, err := s.CallTool(context.Background(), "catalog_status", nil)

		require.NoError(t, err)
		out := res.(CatalogStatusOutput)
		assert.Equal(t, 4, out.TotalProducts)
		assert.Equal(t, 4, out.IndexSize)
		assert.Equal(t, []string{"Clothing", "Electronics"}, out.Categories)
		assert.Equal(t, "ready", out.Embeddings.Status)
		assert.True(t, out.Embeddings.Semantic)
	})

	t.Run("static embedder", func(t *testing.T) {
		s := newTestServer(t, fixedEmbedder{vec: []float32{1, 0}, model: "static-2"})

		res, err := s.CallTool(context.Background(), "catalog_status", nil)

		require.NoError(t, err)
		assert.False(t, res.(CatalogStatusOutput).Embeddings.Semantic)
	})
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t, healthy())

	_, err := s.CallTool(context.Background(), "index_status", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_ConcurrentToolCalls_NoRace(t *testing.T) {
	s := newTestServer(t, healthy())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = s.CallTool(context.Background(), "search", map[string]any{"query": "headphones"})
			} else {
				_, err = s.CallTool(context.Background(), "similar", map[string]any{"product_id": "P0002"})
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestServer_ReadResource(t *testing.T) {
	s := newTestServer(t, healthy())

	res, err := s.ReadResource(context.Background(), CategoriesURI)
	require.NoError(t, err)
	var cats search.CategoryList
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &cats))
	assert.Equal(t, []string{"Headphones", "Shoes", "Speakers"}, cats.Subcategories)

	_, err = s.ReadResource(context.Background(), QueryStatsURI)
	assert.Error(t, err, "query stats are not exposed until set")

	s.SetQueryStats(telemetry.NewQueryStats(telemetry.QueryStatsConfig{}))
	res, err = s.ReadResource(context.Background(), QueryStatsURI)
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "total_queries")

	_, err = s.ReadResource(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}

func TestServer_InMemorySession(t *testing.T) {
	// Given: a client connected over in-memory transports
	s := newTestServer(t, healthy())
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: listing and calling tools
	list, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, list.Tools, len(tools))

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": "wireless headphones", "top_k": 1},
	})

	// Then: markdown content carries the top product
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.True(t, strings.Contains(text.Text, "Sony Wireless Headphones"))

	missing, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "product",
		Arguments: map[string]any{"product_id": "P9999"},
	})
	if err == nil {
		assert.True(t, missing.IsError)
	}
}
