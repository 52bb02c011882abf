package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and embedding Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkquery",
			Name:      "search_requests_total",
			Help:      "Total number of per-backend search queries",
		},
		[]string{"backend", "path", "status"}, // path: "fast" / "generic"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chunkquery",
			Name:      "search_duration_seconds",
			Help:      "Per-backend search query duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "path"},
	)

	SearchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chunkquery",
			Name:      "search_results_returned",
			Help:      "Number of matches contributed per backend query",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"backend"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkquery",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chunkquery",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and embedding metrics. Safe to
// call more than once.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResultsReturned)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	searchMetricsRegistered = true
}
