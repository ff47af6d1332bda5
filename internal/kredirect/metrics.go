package kredirect

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kredirect"

const (
	resultHit     = "hit"
	resultRefresh = "refresh"
	resultSuccess = "success"
	resultFailure = "failure"
	resultNotMod  = "not_modified"
)

var (
	cacheRequests        *prometheus.CounterVec
	cacheRefreshes       *prometheus.CounterVec
	cacheRefreshDuration *prometheus.HistogramVec
	originFetches        *prometheus.CounterVec
	originFetchDuration  *prometheus.HistogramVec
)

func init() {
	cacheRequests = mustRegisterCounterVec("cache", "requests_total",
		"Number of cache reads, by whether they triggered a refresh.", "cache", "result")
	cacheRefreshes = mustRegisterCounterVec("cache", "refresh_total",
		"Number of cache refreshes, by outcome.", "cache", "result")
	cacheRefreshDuration = mustRegisterHistogramVec("cache", "refresh_duration_seconds",
		"Time spent refreshing a cache entry.", prometheus.DefBuckets, "cache")
	originFetches = mustRegisterCounterVec("origin", "fetch_total",
		"Number of origin fetches, by outcome.", "host", "result")
	originFetchDuration = mustRegisterHistogramVec("origin", "fetch_duration_seconds",
		"Time spent fetching from origins.", prometheus.DefBuckets, "host")
}

// mustRegisterCounterVec creates and registers a counter vector.
// Must be called from `init`.
func mustRegisterCounterVec(component, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
	prometheus.MustRegister(m)
	return m
}

// mustRegisterHistogramVec creates and registers a histogram vector.
// Must be called from `init`.
func mustRegisterHistogramVec(component, name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
	m := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelNames)
	prometheus.MustRegister(m)
	return m
}
