// Package metrics exposes prometheus collectors for the event pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook / pipeline metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_events_total",
			Help: "Total number of inbound events processed, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_pipeline_queue_depth",
			Help: "Current depth of the pipeline task queue",
		},
	)

	// Media metrics
	MediaFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_media_reupload_fallbacks_total",
			Help: "Total number of media fetches that needed the re-upload fallback",
		},
	)

	// Analysis metrics
	AnalysisAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_analysis_attempts_total",
			Help: "Total number of analysis request attempts, by kind",
		},
		[]string{"kind"},
	)

	AnalysisFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_analysis_failures_total",
			Help: "Total number of analyses that exhausted their budget or failed fatally",
		},
		[]string{"kind"},
	)

	// Correlation metrics
	ProofsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_proofs_pending",
			Help: "Number of payment proofs currently awaiting an order number",
		},
	)

	CorrelationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_correlations_total",
			Help: "Total number of proofs matched to an order number and forwarded",
		},
	)

	SweepEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_proof_sweep_evictions_total",
			Help: "Total number of pending proofs evicted by the TTL sweep",
		},
	)

	// Tracking metrics
	TrackingSummariesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_tracking_summaries_total",
			Help: "Total number of daily customs summaries sent",
		},
	)

	TrackingPendingPackages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_tracking_pending_packages",
			Help: "Packages flagged with customs or delivery problems in the last summary run",
		},
	)
)
