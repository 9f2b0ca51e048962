package metrics

import "github.com/prometheus/client_golang/prometheus"

// Generation Prometheus metrics.
var (
	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Generation calls by outcome (ok, client, server, timeout)",
		},
		[]string{"provider", "outcome"},
	)

	GenerationRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_retries_total",
			Help:      "Generation attempts that were retried after a transient failure",
		},
		[]string{"provider"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of a single generation attempt in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
		[]string{"provider"},
	)

	GenerationPromptChars = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_prompt_chars",
			Help:      "Size of assembled prompts in characters",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 10),
		},
	)
)

var genMetricsRegistered bool

// RegisterGenerationMetrics registers Prometheus generation metrics. Must be called once from main.
func RegisterGenerationMetrics() {
	if genMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerationAttemptsTotal)
	prometheus.MustRegister(GenerationRetriesTotal)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(GenerationPromptChars)
	genMetricsRegistered = true
}
