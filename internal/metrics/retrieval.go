package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "revdex",
			Name:      "retrieval_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	StageOutputSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "revdex",
			Name:      "retrieval_stage_output_size",
			Help:      "Number of documents a pipeline stage returned",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 250, 500, 1000},
		},
		[]string{"stage"},
	)

	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revdex",
			Name:      "retrievals_total",
			Help:      "Retrievals by outcome",
		},
		[]string{"outcome"}, // "ok" / "no_data" / "error"
	)

	SummaryChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "revdex",
			Name:      "summary_chunks_total",
			Help:      "Map-step chunk summaries by result",
		},
		[]string{"result"}, // "ok" / "failed"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers pipeline metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration, StageOutputSize, RetrievalsTotal, SummaryChunksTotal)
	retrievalMetricsRegistered = true
}
