package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and indexing Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"kind", "status"}, // kind: "hybrid" / "combined"
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caresearch",
			Name:      "search_request_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	SearchDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "search_degraded_total",
			Help:      "Searches answered lexically because the query embedding failed",
		},
	)

	IndexingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "indexing_runs_total",
			Help:      "Total indexing runs",
		},
		[]string{"status"}, // "completed" / "failed" / "rejected"
	)

	IndexingHospitalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "indexing_hospitals_total",
			Help:      "Hospitals processed by the indexing engine",
		},
		[]string{"result"}, // "success" / "failure"
	)

	IndexingCoverage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caresearch",
			Name:      "indexing_coverage_ratio",
			Help:      "Share of active hospitals that currently have an embedding",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and indexing metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchRequestDuration)
	prometheus.MustRegister(SearchDegradedTotal)
	prometheus.MustRegister(IndexingRunsTotal)
	prometheus.MustRegister(IndexingHospitalsTotal)
	prometheus.MustRegister(IndexingCoverage)
	searchMetricsRegistered = true
}
