package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Question batches by final status",
		},
		[]string{"status"}, // "ok" / "error"
	)

	PipelineAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_attempts_total",
			Help:      "Pipeline attempts including outer retries",
		},
	)

	PipelineQuestionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_questions_total",
			Help:      "Questions answered",
		},
	)

	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Chunks seen during ingestion, split by new / duplicate",
		},
		[]string{"result"},
	)

	StoreChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_chunks",
			Help:      "Chunks held by the persistent vector store",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineAttemptsTotal)
	prometheus.MustRegister(PipelineQuestionsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(StoreChunks)
	pipelineMetricsRegistered = true
}
