package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sweep metrics
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_sweeps_total",
			Help: "Total number of anomaly detection sweeps",
		},
		[]string{"status"}, // status: success, failed
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_sweep_duration_seconds",
			Help:    "Time taken to complete a full sweep",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	RulesEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_rules_evaluated_total",
			Help: "Total number of rules evaluated across all sweeps",
		},
	)

	RuleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_rule_failures_total",
			Help: "Total number of rules skipped during sweeps",
		},
		[]string{"reason"}, // reason: fetch, malformed
	)

	AnomaliesDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
	)

	// Alert dispatch metrics
	AlertsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_published_total",
			Help: "Total number of alert publish attempts",
		},
		[]string{"status"}, // status: success, failed
	)

	// Ingest metrics
	EventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_events_ingested_total",
			Help: "Total number of activity events received",
		},
		[]string{"status"}, // status: accepted, rejected
	)

	// Rule management metrics
	RulesManagedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_rules_managed_total",
			Help: "Total number of rule management operations",
		},
		[]string{"operation", "status"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
