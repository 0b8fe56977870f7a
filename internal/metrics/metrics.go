// Package metrics provides Prometheus instrumentation for the moderation
// service. It exposes counters for gate actions, decisions, violations, and
// bans, plus histograms for classifier latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateActionsTotal counts real-time gate verdicts, labeled by action:
	// "allow", "flag", or "block".
	GateActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_gate_actions_total",
		Help: "Total number of real-time gate verdicts",
	}, []string{"action"})

	// DecisionsTotal counts decision engine outcomes, labeled by the
	// resulting record status.
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Total number of decision engine outcomes",
	}, []string{"status"})

	// ClassifierLatency records external classifier call latency in seconds,
	// labeled by model: "primary" or "toxicity".
	ClassifierLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_classifier_latency_seconds",
		Help:    "External classifier call latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	}, []string{"model"})

	// ClassifierFallbacksTotal counts classifications answered by the local
	// heuristic because the primary model was unreachable.
	ClassifierFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_classifier_fallbacks_total",
		Help: "Total number of classifications served by the fallback heuristic",
	})

	// ViolationsTotal counts violations recorded against users, labeled by
	// violation type.
	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_violations_total",
		Help: "Total number of violations recorded",
	}, []string{"type"})

	// BansTotal counts bans issued, labeled by severity.
	BansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bans_total",
		Help: "Total number of bans issued",
	}, []string{"severity"})

	// ReconcilerBatchSize tracks the size of the last reconciler batch.
	ReconcilerBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_reconciler_batch_size",
		Help: "Number of submissions in the last reconciler batch",
	})
)

func init() {
	prometheus.MustRegister(
		GateActionsTotal,
		DecisionsTotal,
		ClassifierLatency,
		ClassifierFallbacksTotal,
		ViolationsTotal,
		BansTotal,
		ReconcilerBatchSize,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
