// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package metrics provides Prometheus instrumentation for the proxy:
// request classification outcomes, hydration chunk results, view cache
// efficiency, and upstream client health.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Router metrics

	// ProxyRequests counts inbound requests by classified route and outcome.
	// route: views|view_items|item; outcome: passthrough|composed|malformed|not_found|error
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_proxy_requests_total",
			Help: "Total proxied requests by route classification and outcome",
		},
		[]string{"route", "outcome"},
	)

	// ProxyRequestDuration tracks end-to-end request handling latency.
	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfgate_proxy_request_duration_seconds",
			Help:    "Duration of proxied request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Hydrator metrics

	// HydrationChunks counts upstream batch fetches by result.
	// result: ok|timeout|error
	HydrationChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_hydration_chunks_total",
			Help: "Total upstream hydration chunk fetches by result",
		},
		[]string{"result"},
	)

	// HydrationItemsDropped counts items excluded because their chunk failed.
	HydrationItemsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfgate_hydration_items_dropped_total",
			Help: "Total items excluded from results due to failed chunk fetches",
		},
	)

	// View cache metrics

	ViewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfgate_view_cache_hits_total",
			Help: "Total view cache hits",
		},
	)

	ViewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfgate_view_cache_misses_total",
			Help: "Total view cache misses",
		},
	)

	// ViewCacheBuilds counts completed cache rebuilds by result
	// (ok|degraded|error). Degraded builds are served but not stored.
	ViewCacheBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_view_cache_builds_total",
			Help: "Total view cache builds by result",
		},
		[]string{"result"},
	)

	// ViewCacheSharedBuilds counts callers that piggybacked on an in-flight
	// build instead of starting their own (single-flight effectiveness).
	ViewCacheSharedBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfgate_view_cache_shared_builds_total",
			Help: "Total cache lookups that awaited an in-flight build",
		},
	)

	ViewCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfgate_view_cache_entries",
			Help: "Current number of materialized view cache entries",
		},
	)

	ViewCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfgate_view_cache_invalidations_total",
			Help: "Total explicit cache invalidations",
		},
	)

	// Upstream client metrics

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfgate_upstream_request_duration_seconds",
			Help:    "Duration of upstream media server API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_upstream_request_errors_total",
			Help: "Total upstream media server API call errors",
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerState tracks breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfgate_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"breaker"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"breaker", "outcome"},
	)

	// HTTP server metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfgate_http_requests_total",
			Help: "Total HTTP requests by method, path pattern, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveProxyRequest records the end-to-end handling time of one
// classified proxy request.
func ObserveProxyRequest(route string, start time.Time) {
	ProxyRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// ObserveUpstreamRequest records the duration and outcome of one upstream
// API call. Status is the HTTP status code, or 0 for transport errors.
func ObserveUpstreamRequest(operation string, start time.Time, status int, err error) {
	UpstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil || status >= 400 {
		UpstreamRequestErrors.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	}
}

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
