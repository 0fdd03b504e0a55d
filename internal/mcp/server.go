package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shoprank/shoprank/internal/embed"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/telemetry"
	"github.com/shoprank/shoprank/pkg/version"
)

// Tool result bounds. Out-of-range values are clamped rather than rejected.
const (
	searchMaxTopK        = 100
	similarDefault       = 10
	similarMax           = 50
	complementaryDefault = 5
	complementaryMax     = 20
)

// Server is the MCP server. It bridges AI clients with the ranking engine.
type Server struct {
	mcp         *mcp.Server
	engine      *search.Engine
	recommender *recommend.Recommender
	embedder    embed.Embedder // for capability signaling, may be nil
	logger      *slog.Logger

	// Query telemetry (optional, set via SetQueryStats)
	queryStats *telemetry.QueryStats

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Ranked product search. Understands price intent (cheap, premium) and category words in the query, and returns products with a score breakdown and a short explanation of why each one ranked where it did.",
	},
	{
		Name:        "similar",
		Description: "Products most similar to a given product by embedding, excluding the product itself.",
	},
	{
		Name:        "complementary",
		Description: "Cross-sell picks that pair well with a given product, such as cases for phones, most popular first.",
	},
	{
		Name:        "product",
		Description: "Full catalog record for one product id.",
	},
	{
		Name:        "catalog_status",
		Description: "Catalog size, categories and the active query embedder. Use before searching to learn valid category names.",
	},
}

// NewServer creates a new MCP server.
func NewServer(engine *search.Engine, recommender *recommend.Recommender, embedder embed.Embedder) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if recommender == nil {
		return nil, errors.New("recommender is required")
	}

	s := &Server{
		engine:      engine,
		recommender: recommender,
		embedder:    embedder,
		logger:      slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "shoprank",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// SetQueryStats exposes query telemetry as the query_stats resource.
func (s *Server) SetQueryStats(qs *telemetry.QueryStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryStats = qs

	if qs != nil {
		s.registerQueryStatsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return tools
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// its structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		in, err := decodeArgs[SearchInput](args)
		if err != nil {
			return nil, err
		}
		return s.runSearch(ctx, in)
	case "similar":
		in, err := decodeArgs[RecommendInput](args)
		if err != nil {
			return nil, err
		}
		return s.similar(ctx, in)
	case "complementary":
		in, err := decodeArgs[RecommendInput](args)
		if err != nil {
			return nil, err
		}
		return s.complementary(ctx, in)
	case "product":
		in, err := decodeArgs[ProductInput](args)
		if err != nil {
			return nil, err
		}
		return s.product(in)
	case "catalog_status":
		return s.catalogStatus(ctx), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	raw, err := json.Marshal(args)
	if err != nil {
		return in, NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return in, nil
}

func (s *Server) runSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	requestID := uuid.NewString()
	start := time.Now()
	req := search.Request{
		Query:    in.Query,
		Budget:   in.Budget,
		Category: in.Category,
		Weights:  in.Weights,
		Explain:  true,
	}
	if in.TopK != 0 {
		req.TopK = clampLimit(in.TopK, 0, 1, searchMaxTopK)
	}
	if in.Explain != nil {
		req.Explain = *in.Explain
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", resp.TotalResults))
	return toSearchOutput(resp), nil
}

func (s *Server) similar(ctx context.Context, in RecommendInput) (SimilarOutput, error) {
	if _, err := s.engine.Product(in.ProductID); err != nil {
		return SimilarOutput{}, MapError(err)
	}
	items, err := s.recommender.Similar(ctx, in.ProductID, clampLimit(in.TopK, similarDefault, 1, similarMax))
	if err != nil {
		return SimilarOutput{}, MapError(err)
	}
	return SimilarOutput{ProductID: in.ProductID, Items: items}, nil
}

func (s *Server) complementary(_ context.Context, in RecommendInput) (ComplementaryOutput, error) {
	if _, err := s.engine.Product(in.ProductID); err != nil {
		return ComplementaryOutput{}, MapError(err)
	}
	items := s.recommender.Complementary(in.ProductID, clampLimit(in.TopK, complementaryDefault, 1, complementaryMax))
	return ComplementaryOutput{ProductID: in.ProductID, Items: items}, nil
}

func (s *Server) product(in ProductInput) (ProductOutput, error) {
	p, err := s.engine.Product(in.ProductID)
	if err != nil {
		return ProductOutput{}, MapError(err)
	}
	return ProductOutput{
		ProductID:       p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Category:        p.Category,
		Subcategory:     p.Subcategory,
		Brand:           p.Brand,
		Price:           p.Price,
		Rating:          p.Rating,
		ReviewCount:     p.ReviewCount,
		InStock:         p.InStock,
		ImageURL:        p.ImageURL,
		PopularityScore: p.PopularityScore,
	}, nil
}

func (s *Server) catalogStatus(ctx context.Context) CatalogStatusOutput {
	stats := s.engine.Stats()
	cats := s.engine.Categories()
	out := CatalogStatusOutput{
		TotalProducts: stats.TotalProducts,
		IndexSize:     stats.IndexSize,
		Categories:    cats.Categories,
		Subcategories: cats.Subcategories,
		Embeddings:    EmbeddingInfo{Model: "none", Status: "unavailable"},
	}
	if s.embedder != nil {
		out.Embeddings = EmbeddingInfo{
			Model:      s.embedder.ModelName(),
			Dimensions: s.embedder.Dimensions(),
			Status:     "unavailable",
			Semantic:   !strings.HasPrefix(s.embedder.ModelName(), "static"),
		}
		if s.embedder.Available(ctx) {
			out.Embeddings.Status = "ready"
		}
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
			out, err := s.runSearch(ctx, in)
			if err != nil {
				return nil, SearchOutput{}, err
			}
			return textResult(FormatSearchResults(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in RecommendInput) (*mcp.CallToolResult, SimilarOutput, error) {
			out, err := s.similar(ctx, in)
			if err != nil {
				return nil, SimilarOutput{}, err
			}
			return textResult(FormatSimilar(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in RecommendInput) (*mcp.CallToolResult, ComplementaryOutput, error) {
			out, err := s.complementary(ctx, in)
			if err != nil {
				return nil, ComplementaryOutput{}, err
			}
			return textResult(FormatComplementary(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description},
		func(_ context.Context, _ *mcp.CallToolRequest, in ProductInput) (*mcp.CallToolResult, ProductOutput, error) {
			out, err := s.product(in)
			if err != nil {
				return nil, ProductOutput{}, err
			}
			return textResult(FormatProduct(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[4].Name, Description: tools[4].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ CatalogStatusInput) (*mcp.CallToolResult, CatalogStatusOutput, error) {
			return nil, s.catalogStatus(ctx), nil
		})

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
