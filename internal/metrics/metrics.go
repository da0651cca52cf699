// Package metrics exposes prometheus collectors for the check pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigilo_checks_in_flight",
			Help: "Number of checks currently executing",
		},
	)

	IdleQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigilo_scheduler_idle_depth",
			Help: "Number of checkables waiting in the scheduler's idle set",
		},
	)

	ResultsPerMinute = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigilo_results_per_minute",
			Help: "Check results processed during the last 60 seconds",
		},
	)

	ResultsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilo_results_processed_total",
			Help: "Check results processed by resulting state",
		},
		[]string{"state"},
	)

	NotificationsRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilo_notifications_requested_total",
			Help: "Notification requests emitted by type",
		},
		[]string{"type"},
	)

	CheckLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigilo_check_latency_seconds",
			Help:    "Delay between a check's scheduled and actual dispatch time",
			Buckets: prometheus.DefBuckets,
		},
	)

	RemoteChecksDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilo_remote_checks_dispatched_total",
			Help: "Checks delegated to a remote command endpoint",
		},
	)

	StaleAgentTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilo_stale_agent_timeouts_total",
			Help: "Pending remote checks force-completed by the stale agent sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksInFlight,
		IdleQueueDepth,
		ResultsPerMinute,
		ResultsProcessed,
		NotificationsRequested,
		CheckLatency,
		RemoteChecksDispatched,
		StaleAgentTimeouts,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
