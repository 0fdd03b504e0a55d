package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

type fixedEmbedder struct {
	vec []float32
	err error
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
func (f fixedEmbedder) ModelName() string              { return "fixed" }
func (f fixedEmbedder) Available(context.Context) bool { return f.err == nil }
func (f fixedEmbedder) Close() error                   { return nil }

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "P0001", Title: "Sony Wireless Headphones", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Sony", Price: 299, Rating: 4.8, ReviewCount: 900, InStock: true, PopularityScore: 0.9},
		{ID: "P0002", Title: "JBL Bluetooth Speaker", Category: "Electronics", Subcategory: "Speakers",
			Brand: "JBL", Price: 99, Rating: 4.1, ReviewCount: 300, InStock: true, PopularityScore: 0.6},
		{ID: "P0003", Title: "Nike Running Shoes", Category: "Clothing", Subcategory: "Shoes",
			Brand: "Nike", Price: 120, Rating: 4.4, ReviewCount: 500, InStock: true, PopularityScore: 0.7},
		{ID: "P0004", Title: "Anker Earbuds", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Anker", Price: 25, Rating: 3.9, ReviewCount: 80, InStock: false, PopularityScore: 0.3},
	}
}

type fixture struct {
	server  *httptest.Server
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T, embedErr error) *fixture {
	t.Helper()
	products := testProducts()
	vectors := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}, {0.6, 0.8}}
	cat, err := catalog.New(products, catalog.ComputeFeatures(products), catalog.NewMapping(products), vectors)
	require.NoError(t, err)
	idx, err := store.NewFlatIndexFrom(cat.Embeddings())
	require.NoError(t, err)

	metrics := telemetry.NewMetrics()
	stats := telemetry.NewQueryStats(telemetry.QueryStatsConfig{})
	engine, err := search.NewEngine(cat, fixedEmbedder{vec: []float32{1, 0}, err: embedErr}, idx,
		search.DefaultEngineConfig(), search.WithMetrics(metrics), search.WithQueryStats(stats))
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(Dependencies{
		Engine:      engine,
		Recommender: recommend.New(cat, idx, recommend.WithMetrics(metrics)),
		Metrics:     metrics,
		QueryStats:  stats,
	}))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, metrics: metrics}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/health")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthResponse{Status: "healthy", Service: ServiceName}, decode[HealthResponse](t, resp))
}

func TestSearch_RanksAndExplains(t *testing.T) {
	// Given: a catalog where P0001 is the exact query match
	f := newFixture(t, nil)

	// When: searching over GET
	resp := f.get(t, "/search?query=wireless+headphones&top_k=3")

	// Then: results are ranked, bounded and explained
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := decode[search.Response](t, resp)
	assert.Equal(t, "wireless headphones", body.Query)
	require.Len(t, body.Results, 3)
	assert.Equal(t, 3, body.TotalResults)
	assert.Equal(t, "P0001", body.Results[0].ID)
	for i, r := range body.Results {
		assert.Equal(t, i+1, r.Rank)
		require.NotNil(t, r.Explanation)
		assert.NotEmpty(t, r.Explanation.Short)
	}
}

func TestSearch_PoolSizeBoundsCandidates(t *testing.T) {
	// Given: a catalog with more products than the requested pool
	f := newFixture(t, nil)

	// When: searching over GET with a pool of two
	resp := f.get(t, "/search?query=wireless+headphones&top_k=5&pool_size=2")

	// Then: only the pooled candidates can be ranked
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[search.Response](t, resp)
	assert.Len(t, body.Results, 2)
	assert.Equal(t, "P0001", body.Results[0].ID)
}

func TestSearch_AssignsRequestIDAndCORS(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/search?query=speaker")

	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSearch_KeepsCallerRequestID(t *testing.T) {
	f := newFixture(t, nil)
	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestSearch_InvalidParameters(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		name string
		path string
	}{
		{"missing query", "/search"},
		{"top_k above max", "/search?query=shoes&top_k=101"},
		{"top_k zero", "/search?query=shoes&top_k=0"},
		{"top_k not a number", "/search?query=shoes&top_k=many"},
		{"budget not a number", "/search?query=shoes&budget=cheap"},
		{"negative budget", "/search?query=shoes&budget=-5"},
		{"unknown weight", "/search?query=shoes&weights=freshness:0.5"},
		{"malformed weights", "/search?query=shoes&weights=text_similarity"},
		{"explain not a bool", "/search?query=shoes&explain=maybe"},
		{"NaN budget", "/search?query=shoes&budget=NaN"},
		{"infinite budget", "/search?query=shoes&budget=Inf"},
		{"NaN weight", "/search?query=shoes&weights=text_similarity:NaN"},
		{"infinite weight", "/search?query=shoes&weights=text_similarity:Inf"},
		{"pool_size zero", "/search?query=shoes&pool_size=0"},
		{"pool_size not a number", "/search?query=shoes&pool_size=lots"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.get(t, tc.path)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, shoperrors.ErrCodeInvalidInput, body.ErrorCode)
			assert.Equal(t, http.StatusBadRequest, body.Code)
		})
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/search?query=anything&category=Clothing&explain=false")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[search.Response](t, resp)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "P0003", body.Results[0].ID)
	assert.Nil(t, body.Results[0].Explanation)
}

func TestSearch_PostBody(t *testing.T) {
	// Given: a JSON body that turns off explanations and reweights
	f := newFixture(t, nil)
	payload := `{"query":"headphones","top_k":2,"weights":{"text_similarity":1},"explain":false}`

	// When
	resp, err := http.Post(f.server.URL+"/search", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	// Then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[search.Response](t, resp)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "P0001", body.Results[0].ID)
	assert.Nil(t, body.Results[0].Explanation)
}

func TestSearch_PostRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/search", "application/json", strings.NewReader(`{"q":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_RetrievalUnavailable(t *testing.T) {
	f := newFixture(t, errors.New("embedding service down"))

	resp := f.get(t, "/search?query=headphones")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, shoperrors.ErrCodeRetrievalUnavailable, body.ErrorCode)
}

func TestSimilar(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("excludes the source", func(t *testing.T) {
		resp := f.get(t, "/similar/P0001?top_k=2")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		items := decode[[]recommend.SimilarItem](t, resp)
		require.Len(t, items, 2)
		assert.Equal(t, "P0002", items[0].ProductID)
		assert.Equal(t, "P0004", items[1].ProductID)
		assert.InDelta(t, 0.8, items[0].SimilarityScore, 1e-4)
	})

	t.Run("unknown product", func(t *testing.T) {
		resp := f.get(t, "/similar/P9999")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, shoperrors.ErrCodeNotFound, decode[ErrorResponse](t, resp).ErrorCode)
	})

	t.Run("top_k above bound", func(t *testing.T) {
		resp := f.get(t, "/similar/P0001?top_k=51")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestComplementary(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("pairs with sibling subcategories", func(t *testing.T) {
		resp := f.get(t, "/complementary/P0001")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		items := decode[[]recommend.ComplementaryItem](t, resp)
		require.NotEmpty(t, items)
		for _, it := range items {
			assert.NotEqual(t, "P0001", it.ProductID)
			assert.Equal(t, "Pairs well with Headphones", it.Reason)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		resp := f.get(t, "/complementary/nope")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("top_k above bound", func(t *testing.T) {
		resp := f.get(t, "/complementary/P0001?top_k=21")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestProduct(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/product/P0003")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[catalog.Product](t, resp)
	assert.Equal(t, "Nike Running Shoes", p.Title)
	assert.InDelta(t, 0.7, p.PopularityScore, 1e-9)

	missing := f.get(t, "/product/P0404")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, missing).Message, "P0404")
}

func TestCategoriesAndStats(t *testing.T) {
	f := newFixture(t, nil)

	cats := decode[search.CategoryList](t, f.get(t, "/categories"))
	assert.Equal(t, []string{"Clothing", "Electronics"}, cats.Categories)
	assert.Equal(t, []string{"Headphones", "Shoes", "Speakers"}, cats.Subcategories)

	stats := decode[search.Stats](t, f.get(t, "/stats"))
	assert.Equal(t, 4, stats.TotalProducts)
	assert.Equal(t, 4, stats.IndexSize)
	assert.Equal(t, 2, stats.EmbeddingDimension)
}

func TestQueryStatsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.get(t, "/search?query=headphones&explain=false")

	snap := decode[telemetry.QueryStatsSnapshot](t, f.get(t, "/stats/queries"))

	assert.Equal(t, int64(1), snap.TotalQueries)
}

func TestMetricsEndpoint(t *testing.T) {
	// Given: one routed request
	f := newFixture(t, nil)
	f.get(t, "/product/P0001")

	// When
	resp := f.get(t, "/metrics")

	// Then: the route pattern and code label the counter
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `shoprank_http_requests_total{code="200",route="/product/{productID}"} 1`)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, nil)
	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestToHTTPResponse(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shoperrors.NotFound("P1"), http.StatusNotFound},
		{"invalid", shoperrors.ValidationError("bad", nil), http.StatusBadRequest},
		{"retrieval", shoperrors.RetrievalUnavailable("down", nil), http.StatusServiceUnavailable},
		{"internal", shoperrors.InternalError("secret detail", nil), http.StatusInternalServerError},
		{"plain", errors.New("secret detail"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := ToHTTPResponse(tc.err)

			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.status, body.Code)
			if status == http.StatusInternalServerError {
				assert.NotContains(t, body.Message, "secret")
			}
		})
	}
}
