// Package telemetry collects search telemetry: Prometheus collectors for the
// /metrics endpoint, an in-process QueryStats aggregate, and a SQLite history
// that long-running servers flush on shutdown.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket maps a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one search request.
type QueryEvent struct {
	Query string

	// Category is the resolved category intent, empty when none.
	Category string

	// PriceIntent is "budget", "premium" or empty.
	PriceIntent string

	ResultCount int
	Latency     time.Duration
	Failed      bool
}

// TermCount is a query term with its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	CategoryIntents     map[string]int64        `json:"category_intents"`
	PriceIntents        map[string]int64        `json:"price_intents"`
	TopTerms            []TermCount             `json:"top_terms"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	RepeatQueries       int64                   `json:"repeat_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries in percent.
func (s *QueryStatsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryStatsConfig sizes the bounded aggregates.
type QueryStatsConfig struct {
	TopTermsCapacity      int // default 100
	ZeroResultsCapacity   int // default 100
	RecentQueriesCapacity int // default 500
}

// QueryStats aggregates query patterns in memory. Safe for concurrent use.
type QueryStats struct {
	mu sync.Mutex

	total       int64
	failed      int64
	zeroResults int64
	repeats     int64
	categories  map[string]int64
	prices      map[string]int64
	latencies   map[LatencyBucket]int64
	terms       *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	zeroQueries *Ring[string]
	since       time.Time
}

// NewQueryStats creates an empty aggregate.
func NewQueryStats(cfg QueryStatsConfig) *QueryStats {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}

	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)
	return &QueryStats{
		categories:  make(map[string]int64),
		prices:      make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		terms:       terms,
		recent:      recent,
		zeroQueries: NewRing[string](cfg.ZeroResultsCapacity),
		since:       time.Now(),
	}
}

// Record adds one event.
func (s *QueryStats) Record(ev QueryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.latencies[LatencyToBucket(ev.Latency)]++
	if ev.Failed {
		s.failed++
		return
	}

	s.categories[labelOrNone(ev.Category)]++
	s.prices[labelOrNone(ev.PriceIntent)]++

	for _, term := range ExtractTerms(ev.Query) {
		n, _ := s.terms.Get(term)
		s.terms.Add(term, n+1)
	}

	if ev.ResultCount == 0 {
		s.zeroResults++
		s.zeroQueries.Push(ev.Query)
	}

	key := hashQuery(ev.Query)
	if _, seen := s.recent.Get(key); seen {
		s.repeats++
	}
	s.recent.Add(key, struct{}{})
}

// Snapshot copies the current aggregates.
func (s *QueryStats) Snapshot() *QueryStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := make([]TermCount, 0, s.terms.Len())
	for _, k := range s.terms.Keys() {
		if n, ok := s.terms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: n})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})

	latencies := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		latencies[k] = v
	}
	categories := make(map[string]int64, len(s.categories))
	for k, v := range s.categories {
		categories[k] = v
	}
	prices := make(map[string]int64, len(s.prices))
	for k, v := range s.prices {
		prices[k] = v
	}

	return &QueryStatsSnapshot{
		TotalQueries:        s.total,
		FailedQueries:       s.failed,
		ZeroResultCount:     s.zeroResults,
		ZeroResultQueries:   s.zeroQueries.Items(),
		CategoryIntents:     categories,
		PriceIntents:        prices,
		TopTerms:            terms,
		LatencyDistribution: latencies,
		RepeatQueries:       s.repeats,
		Since:               s.since,
	}
}

// ExtractTerms lowercases the query and keeps words of 3+ characters.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

func labelOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
