package observability

import (
	"database/sql"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or 5xx growth.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases on export routes.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecast API call rate by outcome.
	ForecastAPICallsTotal *prometheus.CounterVec

	// Forecast API latency. Watch for: p99 approaching weather_api.timeout.
	ForecastAPIDuration *prometheus.HistogramVec

	// Forecast API failures by category (see client.CategorizeError).
	ForecastAPIErrorsTotal *prometheus.CounterVec

	// Records written, by source: "api" for client creates, "range_fetch" for range-fetch.
	RecordsPersistedTotal *prometheus.CounterVec

	// Range-fetch days not returned: reason "missing" (no upstream day) or "persist_failed".
	RangeFetchSkippedDaysTotal *prometheus.CounterVec

	// Rate limit denials on /api/weather.
	RateLimitDeniedTotal prometheus.Counter

	dbStatsOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ForecastAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiCallsTotal",
			Help: "Total number of forecast API calls",
		},
		[]string{"status"},
	)
	ForecastAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastApiDurationSeconds",
			Help:    "Forecast API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ForecastAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiErrorsTotal",
			Help: "Forecast API failures by category",
		},
		[]string{"category"},
	)
	RecordsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherRecordsPersistedTotal",
			Help: "Weather records written to the store, by source",
		},
		[]string{"source"},
	)
	RangeFetchSkippedDaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeFetchSkippedDaysTotal",
			Help: "Requested range-fetch days absent from the response, by reason",
		},
		[]string{"reason"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ForecastAPICallsTotal, ForecastAPIDuration, ForecastAPIErrorsTotal,
		RecordsPersistedTotal, RangeFetchSkippedDaysTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterDBStats exposes connection pool statistics for db. Only the first call registers.
func RegisterDBStats(db *sql.DB) {
	dbStatsOnce.Do(func() {
		registry.MustRegister(collectors.NewDBStatsCollector(db, "weather"))
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
