// Package metrics exposes Prometheus instrumentation for the telemetry
// ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceivedTotal counts telemetry events accepted into a batch
	// after validation.
	EventsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mytube_telemetry_events_received_total",
		Help: "Total number of telemetry events accepted for processing",
	})

	// EventsSkippedTotal counts events dropped during validation or
	// reconciliation, by reason.
	EventsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mytube_telemetry_events_skipped_total",
		Help: "Total number of telemetry events skipped, by reason",
	}, []string{"reason"})

	// UpsertsTotal counts resume-position writes emitted by reconciliation.
	UpsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mytube_watch_history_upserts_total",
		Help: "Total number of watch history upserts emitted",
	})

	// BatchDuration observes end-to-end ingest batch processing time.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mytube_telemetry_batch_duration_seconds",
		Help:    "Time spent processing one telemetry batch",
		Buckets: prometheus.DefBuckets,
	})

	// EventsExpiredTotal counts telemetry events removed by the retention
	// sweeper.
	EventsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mytube_telemetry_events_expired_total",
		Help: "Total number of telemetry events deleted by retention sweeps",
	})
)

// IncSkipped records a skipped event with a concrete reason.
func IncSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	EventsSkippedTotal.WithLabelValues(reason).Inc()
}
