// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package metrics exposes Prometheus instrumentation for the ledger,
// quota guard, Strava sync, and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Ledger metrics
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Total accomplishment ledger writes",
		},
		[]string{"type", "result"}, // result: "created", "duplicate", "error"
	)

	LedgerDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_deletes_total",
			Help: "Total accomplishment deletions",
		},
	)

	// Quota metrics
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_rejections_total",
			Help: "Total requests rejected by quota enforcement",
		},
		[]string{"resource"}, // "checkins", "qr_sheet", "strava_sync", "manual_upload"
	)

	// Geofence metrics
	GeofenceRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geofence_rejections_total",
			Help: "Total activities rejected for being outside the event region",
		},
	)

	// Strava sync metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strava_sync_duration_seconds",
			Help:    "Duration of Strava sync operations in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	SyncActivitiesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_sync_activities_fetched_total",
			Help: "Total activities fetched from the partner API",
		},
	)

	SyncActivitiesCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_sync_activities_credited_total",
			Help: "Total newly credited activities from sync",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_sync_errors_total",
			Help: "Total sync errors",
		},
		[]string{"error_type"}, // "token_refresh", "fetch", "ledger", "rate_limited"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strava_sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "routes", "catalog"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Catalog metrics
	CatalogFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_fetch_duration_seconds",
			Help:    "Duration of route catalog fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_degraded_total",
			Help: "Total route submissions served from a synthesized record after catalog failure",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSync records one completed sync invocation.
func RecordSync(duration time.Duration, fetched, credited int, err error) {
	SyncDuration.Observe(duration.Seconds())
	SyncActivitiesFetched.Add(float64(fetched))
	SyncActivitiesCredited.Add(float64(credited))
	if err == nil {
		SyncLastSuccess.SetToCurrentTime()
	}
}

// RecordCircuitBreakerState maps a breaker state name to its gauge value.
func RecordCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
