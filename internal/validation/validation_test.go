package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/search"
)

// stubSearcher answers every query with the same results, or rejects
// queries listed in reject.
type stubSearcher struct {
	results []search.Result
	reject  map[string]bool
	seen    []search.Request
}

func (s *stubSearcher) Search(_ context.Context, req search.Request) (*search.Response, error) {
	s.seen = append(s.seen, req)
	if s.reject[req.Query] {
		return nil, errors.New("rejected")
	}
	n := len(s.results)
	if req.TopK > 0 && req.TopK < n {
		n = req.TopK
	}
	return &search.Response{Query: req.Query, TotalResults: n, Results: s.results[:n]}, nil
}

func result(rank int, id, category string, price float64) search.Result {
	return search.Result{
		Rank:    rank,
		Product: catalog.Product{ID: id, Category: category, Price: price},
	}
}

func TestDefaultSuite_Parses(t *testing.T) {
	s, err := DefaultSuite()
	require.NoError(t, err)

	require.NotEmpty(t, s.Tier1)
	require.NotEmpty(t, s.Tier2)
	require.NotEmpty(t, s.Negative)
	for _, q := range s.Tier1 {
		assert.Equal(t, Tier1, q.Tier, q.ID)
	}
	for _, q := range s.Negative {
		assert.Equal(t, TierNegative, q.Tier, q.ID)
	}
}

func TestLoadSuite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tier2:\n  - id: X\n    query: lamp\n"), 0o644))

	s, err := LoadSuite(path)

	require.NoError(t, err)
	require.Len(t, s.Tier2, 1)
	assert.Equal(t, Tier2, s.Tier2[0].Tier)
	assert.Empty(t, s.Tier1)
}

func TestLoadSuite_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tier1: [oops"), 0o644))

	_, err := LoadSuite(path)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	results := []search.Result{
		result(1, "P1", "Electronics", 40),
		result(2, "P2", "Clothing", 120),
		result(3, "P3", "Electronics", 20),
	}

	tests := []struct {
		name   string
		exp    Expectation
		passes bool
	}{
		{"no constraints", Expectation{}, true},
		{"enough results", Expectation{MinResults: 3}, true},
		{"too few results", Expectation{MinResults: 4}, false},
		{"too many results", Expectation{MaxResults: 2}, false},
		{"mixed categories", Expectation{AllCategory: "Electronics"}, false},
		{"category within window", Expectation{TopCategory: "Clothing", Within: 2}, true},
		{"category outside window", Expectation{TopCategory: "Clothing", Within: 1}, false},
		{"prices within window", Expectation{MaxPrice: 50, Within: 1}, true},
		{"price over in window", Expectation{MaxPrice: 50, Within: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := check(tt.exp, results)
			assert.Equal(t, tt.passes, reason == "", reason)
		})
	}
}

func TestRunQuery_ForwardsRequest(t *testing.T) {
	stub := &stubSearcher{results: []search.Result{result(1, "P1", "Electronics", 10)}}
	budget := 25.0

	tr := NewValidator(stub).RunQuery(context.Background(), QuerySpec{
		Query:    "speaker",
		Category: "Electronics",
		TopK:     3,
		Budget:   &budget,
		Weights:  map[string]float64{"budget_match": 1},
		Tier:     Tier1,
	})

	assert.True(t, tr.Passed, tr.Reason)
	assert.Equal(t, []string{"P1"}, tr.TopResults)
	require.Len(t, stub.seen, 1)
	assert.Equal(t, "Electronics", stub.seen[0].Category)
	assert.Equal(t, 3, stub.seen[0].TopK)
	assert.Equal(t, &budget, stub.seen[0].Budget)
}

func TestRunQuery_NegativeTier(t *testing.T) {
	stub := &stubSearcher{reject: map[string]bool{"bad": true}}
	v := NewValidator(stub)

	assert.True(t, v.RunQuery(context.Background(), QuerySpec{Query: "bad"}).Passed)

	accepted := v.RunQuery(context.Background(), QuerySpec{Query: "fine"})
	assert.False(t, accepted.Passed)
	assert.Equal(t, "request was accepted", accepted.Reason)
}

func TestRunAll_Report(t *testing.T) {
	// Given: a suite whose tier 2 check fails
	stub := &stubSearcher{
		results: []search.Result{result(1, "P1", "Electronics", 10)},
		reject:  map[string]bool{"": true},
	}
	suite := &Suite{
		Tier1:    []QuerySpec{{ID: "a", Query: "x", Tier: Tier1, Expect: Expectation{MinResults: 1}}},
		Tier2:    []QuerySpec{{ID: "b", Query: "y", Tier: Tier2, Expect: Expectation{TopCategory: "Toys"}}},
		Negative: []QuerySpec{{ID: "c", Query: "", Tier: TierNegative}},
	}

	// When: the suite runs
	report := NewValidator(stub).RunAll(context.Background(), suite)

	// Then: tier 2 failures do not fail the run
	assert.True(t, report.Passed())
	p, n := Counts(report.Tier2)
	assert.Equal(t, 0, p)
	assert.Equal(t, 1, n)
}
