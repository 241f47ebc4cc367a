package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline and fault-tolerance metrics.
var (
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentq",
			Name:      "executions_total",
			Help:      "Total datasource executions by adapter and outcome",
		},
		[]string{"adapter", "backend", "status"}, // status: success / failure / timeout / rejected
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intentq",
			Name:      "execution_duration_seconds",
			Help:      "Datasource execution duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"adapter", "backend"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intentq",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per adapter (0=closed, 1=open, 2=half_open)",
		},
		[]string{"adapter"},
	)

	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentq",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions per adapter",
		},
		[]string{"adapter", "from", "to"},
	)

	MatchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intentq",
			Name:      "match_candidates",
			Help:      "Number of template candidates clearing the confidence threshold",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"domain"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intentq",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Retrieval pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // match / extract / execute / format
	)

	TemplateReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentq",
			Name:      "template_reloads_total",
			Help:      "Template library reloads by outcome",
		},
		[]string{"domain", "status"}, // status: success / failure
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers pipeline metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(BreakerTransitionsTotal)
	prometheus.MustRegister(MatchCandidates)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(TemplateReloadsTotal)
	retrievalMetricsRegistered = true
}
