package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval core Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragkit",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	IndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "index_builds_total",
			Help:      "Total number of index build runs",
		},
		[]string{"status"},
	)

	IndexedChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "indexed_chunks_total",
			Help:      "Total chunks upserted into the documents collection",
		},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "searches_total",
			Help:      "Total similarity searches by collection",
		},
		[]string{"collection", "status"},
	)

	SkippedFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragkit",
			Name:      "corpus_skipped_files_total",
			Help:      "Corpus files skipped because text extraction failed",
		},
	)
)

var registered bool

// Register registers the retrieval core metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(IndexBuildsTotal)
	prometheus.MustRegister(IndexedChunksTotal)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SkippedFilesTotal)
	registered = true
}
