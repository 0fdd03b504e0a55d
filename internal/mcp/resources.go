package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	CategoriesURI = "shoprank://categories"
	StatsURI      = "shoprank://stats"
	QueryStatsURI = "shoprank://query_stats"
)

// registerResources registers the catalog overview resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "categories",
		URI:         CategoriesURI,
		Description: "Distinct category and subcategory names in the catalog",
		MIMEType:    "application/json",
	}, s.jsonResource(CategoriesURI, func() any { return s.engine.Categories() }))

	s.mcp.AddResource(&mcp.Resource{
		Name:        "stats",
		URI:         StatsURI,
		Description: "Catalog and vector index statistics",
		MIMEType:    "application/json",
	}, s.jsonResource(StatsURI, func() any { return s.engine.Stats() }))
}

// registerQueryStatsResource registers the query_stats resource.
func (s *Server) registerQueryStatsResource() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "query_stats",
		URI:         QueryStatsURI,
		Description: "Query pattern telemetry: intents, top terms, zero-result queries",
		MIMEType:    "application/json",
	}, s.jsonResource(QueryStatsURI, func() any {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.queryStats.Snapshot()
	}))
}

func (s *Server) jsonResource(uri string, value func() any) mcp.ResourceHandler {
	return func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readJSON(uri, value())
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	switch uri {
	case CategoriesURI:
		return s.readJSON(uri, s.engine.Categories())
	case StatsURI:
		return s.readJSON(uri, s.engine.Stats())
	case QueryStatsURI:
		s.mu.RLock()
		qs := s.queryStats
		s.mu.RUnlock()
		if qs == nil {
			return nil, NewResourceNotFoundError(uri)
		}
		return s.readJSON(uri, qs.Snapshot())
	default:
		return nil, NewResourceNotFoundError(uri)
	}
}

func (s *Server) readJSON(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}
