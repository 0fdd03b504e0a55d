package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcome labels.
const (
	StatusOK          = "ok"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Metrics holds the Prometheus collectors on a private registry so tests and
// multiple servers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	SearchLatency        prometheus.Histogram
	SearchRequests       *prometheus.CounterVec
	CandidatePool        prometheus.Histogram
	RecommendRequests    *prometheus.CounterVec
	ExplanationsDegraded prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoprank_search_latency_seconds",
			Help:    "Latency of the ranking pipeline",
			Buckets: prometheus.DefBuckets,
		}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_search_requests_total",
			Help: "Search requests by outcome",
		}, []string{"status"}),
		CandidatePool: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoprank_candidate_pool_size",
			Help:    "Candidates scored per search after filtering",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		}),
		RecommendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_recommend_requests_total",
			Help: "Recommendation requests by kind",
		}, []string{"kind"}),
		ExplanationsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoprank_explanations_degraded_total",
			Help: "LLM explanations that fell back to the template",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.SearchLatency,
		m.SearchRequests,
		m.CandidatePool,
		m.RecommendRequests,
		m.ExplanationsDegraded,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveSearch records one pipeline run.
func (m *Metrics) ObserveSearch(status string, latency time.Duration, candidates int) {
	m.SearchRequests.WithLabelValues(status).Inc()
	m.SearchLatency.Observe(latency.Seconds())
	if status == StatusOK {
		m.CandidatePool.Observe(float64(candidates))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
