// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package metrics defines the service's Prometheus instrumentation:
// sync run outcomes, upstream request behavior, cache efficiency, and
// scheduler activity. Metrics are registered via promauto at package
// init and exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calendar_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"sync_type"}, // "hourly", "daily", "season", "range", "incremental"
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_runs_total",
			Help: "Total number of sync runs by type and outcome",
		},
		[]string{"sync_type", "status"}, // status: "success", "failure"
	)

	SyncEventsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_events_created_total",
			Help: "Total number of events created by sync runs",
		},
		[]string{"sync_type"},
	)

	SyncEventsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_events_updated_total",
			Help: "Total number of events updated by sync runs",
		},
		[]string{"sync_type"},
	)

	SyncEventsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_events_deleted_total",
			Help: "Total number of events removed by sync cleanup",
		},
		[]string{"sync_type"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_errors_total",
			Help: "Total number of per-event errors during sync runs",
		},
		[]string{"sync_type"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calendar_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync run",
		},
		[]string{"sync_type"},
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_sync_in_progress",
			Help: "1 while a sync run holds the single-flight guard",
		},
	)

	// Upstream Metrics

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_upstream_requests_total",
			Help: "Total upstream requests by source and outcome",
		},
		[]string{"source", "status"}, // source: "api", "ics"; status: "ok", "error", "rate_limited"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calendar_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_upstream_retries_total",
			Help: "Total retry attempts after rate-limited responses",
		},
	)

	// Circuit Breaker Metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calendar_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_circuit_breaker_rejections_total",
			Help: "Requests rejected while the circuit breaker was open",
		},
		[]string{"name"},
	)

	// Cache Metrics

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_cache_hits_total",
			Help: "Total upstream response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_cache_misses_total",
			Help: "Total upstream response cache misses",
		},
	)

	// Scheduler Metrics

	ScheduledRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_scheduled_runs_skipped_total",
			Help: "Scheduled runs skipped because a sync was already running",
		},
		[]string{"sync_type"},
	)

	ScheduledRunsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_scheduled_runs_triggered_total",
			Help: "Scheduled runs triggered by the cron scheduler",
		},
		[]string{"sync_type"},
	)

	// Store Metrics

	StoredEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_stored_events",
			Help: "Number of events currently in the store",
		},
	)
)

// ObserveSyncRun records the standard metric set for one finished sync
// run.
func ObserveSyncRun(syncType string, duration time.Duration, success bool, created, updated, deleted, errs int) {
	SyncDuration.WithLabelValues(syncType).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "failure"
	}
	SyncRuns.WithLabelValues(syncType, status).Inc()
	SyncEventsCreated.WithLabelValues(syncType).Add(float64(created))
	SyncEventsUpdated.WithLabelValues(syncType).Add(float64(updated))
	SyncEventsDeleted.WithLabelValues(syncType).Add(float64(deleted))
	SyncErrors.WithLabelValues(syncType).Add(float64(errs))
	if success {
		SyncLastSuccess.WithLabelValues(syncType).SetToCurrentTime()
	}
}
