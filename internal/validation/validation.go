// Package validation runs a data-driven suite of ranking checks against a
// loaded search engine. Queries live in YAML so they can be edited without a
// rebuild; a default suite is embedded.
package validation

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shoprank/shoprank/internal/search"
)

//go:embed queries.yaml
var defaultSuite []byte

// Tiers.
const (
	TierNegative = 0
	Tier1        = 1
	Tier2        = 2
)

// Expectation constrains a query's results.
type Expectation struct {
	MinResults  int     `yaml:"min_results" json:"min_results,omitempty"`
	MaxResults  int     `yaml:"max_results" json:"max_results,omitempty"`
	AllCategory string  `yaml:"all_category" json:"all_category,omitempty"`
	TopCategory string  `yaml:"top_category" json:"top_category,omitempty"`
	MaxPrice    float64 `yaml:"max_price" json:"max_price,omitempty"`

	// Within is the rank window for TopCategory and MaxPrice. Default 5.
	Within int `yaml:"within" json:"within,omitempty"`
}

// QuerySpec is one check.
type QuerySpec struct {
	ID       string             `yaml:"id" json:"id"`
	Name     string             `yaml:"name" json:"name"`
	Query    string             `yaml:"query" json:"query"`
	Category string             `yaml:"category" json:"category,omitempty"`
	TopK     int                `yaml:"top_k" json:"top_k,omitempty"`
	Budget   *float64           `yaml:"budget" json:"budget,omitempty"`
	Weights  map[string]float64 `yaml:"weights" json:"weights,omitempty"`
	Expect   Expectation        `yaml:"expect" json:"expect"`
	Tier     int                `yaml:"-" json:"tier"`
}

// Suite is a full set of checks.
type Suite struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

// ParseSuite decodes a YAML suite and assigns tiers.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse query suite: %w", err)
	}
	for i := range s.Tier1 {
		s.Tier1[i].Tier = Tier1
	}
	for i := range s.Tier2 {
		s.Tier2[i].Tier = Tier2
	}
	for i := range s.Negative {
		s.Negative[i].Tier = TierNegative
	}
	return &s, nil
}

// DefaultSuite returns the embedded suite.
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuite)
}

// LoadSuite reads a suite file, or the embedded suite when path is empty.
func LoadSuite(path string) (*Suite, error) {
	if path == "" {
		return DefaultSuite()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query suite: %w", err)
	}
	return ParseSuite(data)
}

// TestResult is the outcome of one check.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Reason     string        `json:"reason,omitempty"`
	TopResults []string      `json:"top_results,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Report aggregates a run.
type Report struct {
	Timestamp time.Time    `json:"timestamp"`
	Tier1     []TestResult `json:"tier1"`
	Tier2     []TestResult `json:"tier2"`
	Negative  []TestResult `json:"negative"`
}

// Passed reports whether every tier 1 and negative check passed.
func (r *Report) Passed() bool {
	return allPassed(r.Tier1) && allPassed(r.Negative)
}

// Counts returns passed and total checks for a tier slice.
func Counts(results []TestResult) (passed, total int) {
	for _, tr := range results {
		if tr.Passed {
			passed++
		}
	}
	return passed, len(results)
}

func allPassed(results []TestResult) bool {
	p, n := Counts(results)
	return p == n
}

// Searcher is the engine surface the validator needs.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// Validator runs suites against one engine.
type Validator struct {
	engine Searcher
}

// NewValidator creates a Validator.
func NewValidator(engine Searcher) *Validator {
	return &Validator{engine: engine}
}

// RunQuery executes one check.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	resp, err := v.engine.Search(ctx, search.Request{
		Query:    spec.Query,
		TopK:     spec.TopK,
		Budget:   spec.Budget,
		Category: spec.Category,
		Weights:  spec.Weights,
	})
	result := TestResult{Spec: spec, Duration: time.Since(start)}

	if spec.Tier == TierNegative {
		result.Passed = err != nil
		if err == nil {
			result.Reason = "request was accepted"
		} else {
			result.Reason = err.Error()
		}
		return result
	}
	if err != nil {
		result.Reason = err.Error()
		return result
	}

	for _, r := range resp.Results {
		result.TopResults = append(result.TopResults, r.ID)
	}
	result.Reason = check(spec.Expect, resp.Results)
	result.Passed = result.Reason == ""
	return result
}

// check returns why results miss exp, or "" when they satisfy it.
func check(exp Expectation, results []search.Result) string {
	n := len(results)
	if n < exp.MinResults {
		return fmt.Sprintf("got %d results, want at least %d", n, exp.MinResults)
	}
	if exp.MaxResults > 0 && n > exp.MaxResults {
		return fmt.Sprintf("got %d results, want at most %d", n, exp.MaxResults)
	}
	if exp.AllCategory != "" {
		for _, r := range results {
			if r.Category != exp.AllCategory {
				return fmt.Sprintf("rank %d %s is in %q, want %q", r.Rank, r.ID, r.Category, exp.AllCategory)
			}
		}
	}

	within := exp.Within
	if within <= 0 {
		within = 5
	}
	top := results[:min(within, n)]

	if exp.TopCategory != "" {
		found := false
		for _, r := range top {
			if r.Category == exp.TopCategory {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("no %q product in the top %d", exp.TopCategory, within)
		}
	}
	if exp.MaxPrice > 0 {
		for _, r := range top {
			if r.Price > exp.MaxPrice {
				return fmt.Sprintf("rank %d %s costs %.2f, over %.2f", r.Rank, r.ID, r.Price, exp.MaxPrice)
			}
		}
	}
	return ""
}

// RunAll executes every check in suite.
func (v *Validator) RunAll(ctx context.Context, suite *Suite) *Report {
	report := &Report{Timestamp: time.Now()}
	for _, spec := range suite.Tier1 {
		report.Tier1 = append(report.Tier1, v.RunQuery(ctx, spec))
	}
	for _, spec := range suite.Tier2 {
		report.Tier2 = append(report.Tier2, v.RunQuery(ctx, spec))
	}
	for _, spec := range suite.Negative {
		report.Negative = append(report.Negative, v.RunQuery(ctx, spec))
	}
	return report
}
