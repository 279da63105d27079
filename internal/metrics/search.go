package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vector store, query parser and index synchronizer metrics.
var (
	VectorStoreVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_store_vectors",
			Help:      "Number of vectors in the in-memory index",
		},
	)

	VectorStoreState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_store_state",
			Help:      "1 for the current vector store lifecycle state, 0 otherwise",
		},
		[]string{"state"},
	)

	VectorStoreRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_store_rebuilds_total",
			Help:      "Full index rebuilds",
		},
		[]string{"result"}, // "ok" / "error"
	)

	VectorStoreSearchWidenings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_store_search_rounds",
			Help:      "Candidate windows scanned per search",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
	)

	QueryParserTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_parser_total",
			Help:      "Parsed queries by method",
		},
		[]string{"method"}, // "semantic" / "fallback"
	)

	IndexSyncEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_sync_events_total",
			Help:      "Catalog mutations handled by the index synchronizer",
		},
		[]string{"kind", "action", "result"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers vector store, parser and sync metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(VectorStoreVectors)
	prometheus.MustRegister(VectorStoreState)
	prometheus.MustRegister(VectorStoreRebuildsTotal)
	prometheus.MustRegister(VectorStoreSearchWidenings)
	prometheus.MustRegister(QueryParserTotal)
	prometheus.MustRegister(IndexSyncEventsTotal)
	searchMetricsRegistered = true
}
