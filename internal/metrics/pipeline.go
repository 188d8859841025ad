package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and answer pipeline Prometheus metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "ingest_documents_total",
			Help:      "Total documents ingested",
		},
		[]string{"status"},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "ingest_chunks_total",
			Help:      "Total chunks written to the index",
		},
	)

	AnswerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "answer_requests_total",
			Help:      "Total answer requests",
		},
		[]string{"status"},
	)

	AnswerPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "answer_phase_duration_seconds",
			Help:      "Per-phase answer pipeline duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"phase"}, // "search" / "fetch" / "rank" / "generate"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(AnswerRequestsTotal)
	prometheus.MustRegister(AnswerPhaseDuration)
	pipelineMetricsRegistered = true
}
