package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	requestsTotal        *prometheus.CounterVec
	latencySeconds       *prometheus.HistogramVec
	errorsTotal          *prometheus.CounterVec
	fetchTotal           *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	cacheRequestsTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the dashboard.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_requests_total",
			Help: "Total number of dashboard API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_latency_seconds",
			Help:    "Latency distribution for dashboard API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_errors_total",
			Help: "Total number of error responses returned by dashboard endpoints.",
		}, []string{"method", "route", "status"})

		fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_store_fetch_total",
			Help: "Fetches issued against the submissions store.",
		}, []string{"driver", "result"})

		fetchDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_store_fetch_duration_seconds",
			Help:    "Duration of full collection fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"driver"})

		cacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_requests_total",
			Help: "Submission cache lookups by backend and outcome.",
		}, []string{"backend", "result"})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, fetchTotal, fetchDurationSeconds, cacheRequestsTotal)
	})
}

// Requests exposes the counter for dashboard requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for dashboard requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for dashboard error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// StoreFetches counts fetches by driver and result ("ok" or "error").
func StoreFetches() *prometheus.CounterVec {
	RegisterMetrics()
	return fetchTotal
}

// StoreFetchDuration observes fetch latency per driver.
func StoreFetchDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return fetchDurationSeconds
}

// CacheRequests counts cache lookups by backend and result ("hit" or "miss").
func CacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheRequestsTotal
}
