// Package metrics provides Prometheus collectors for the medication safety
// service:
//   - http_request_total / http_request_duration_seconds for the API surface
//   - medsafety_safety_* for the layered safety evaluation
//   - medsafety_external_* for the interaction cache and external lookups
//   - medsafety_sync_* for registry sync transitions and side effects
//
// All collectors are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	SafetyLayerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_safety_layer_calls_total",
			Help: "Safety layer invocations by layer",
		},
		[]string{"layer"},
	)

	SafetyShortCircuits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medsafety_safety_short_circuits_total",
			Help: "Evaluations that skipped the advisor because the rule layer found a critical warning",
		},
	)

	SafetyLayerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_safety_layer_failures_total",
			Help: "Safety layer failures that degraded to deterministic results",
		},
		[]string{"layer"},
	)

	SafetyLayerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medsafety_safety_layer_duration_seconds",
			Help:    "Safety layer latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"layer"},
	)

	ExternalCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_external_cache_lookups_total",
			Help: "External interaction cache lookups by result (hit, miss, expired, error)",
		},
		[]string{"result"},
	)

	ExternalLookupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_external_lookup_failures_total",
			Help: "External interaction source failures by stage",
		},
		[]string{"stage"},
	)

	SyncTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_sync_transitions_total",
			Help: "Registry sync transitions applied",
		},
		[]string{"transition"},
	)

	SyncSideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_sync_side_effect_failures_total",
			Help: "Reminder, nudge and cache side effects that failed without failing the sync",
		},
		[]string{"effect"},
	)

	BackfillBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsafety_backfill_batches_total",
			Help: "Backfill write batches by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(SafetyLayerCalls)
	prometheus.MustRegister(SafetyShortCircuits)
	prometheus.MustRegister(SafetyLayerFailures)
	prometheus.MustRegister(SafetyLayerDuration)
	prometheus.MustRegister(ExternalCacheLookups)
	prometheus.MustRegister(ExternalLookupFailures)
	prometheus.MustRegister(SyncTransitions)
	prometheus.MustRegister(SyncSideEffectFailures)
	prometheus.MustRegister(BackfillBatches)
}
