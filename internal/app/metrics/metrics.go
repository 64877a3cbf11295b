package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atlas",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of dispatched RPC method calls.",
		},
		[]string{"method", "success"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of RPC method handlers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "rpc",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected for a blocked user.",
		},
	)

	dbReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "db",
			Name:      "reconnects_total",
			Help:      "Total number of successful database handle rebuilds.",
		},
	)

	dbConnectFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "db",
			Name:      "connect_failures_total",
			Help:      "Total number of failed database connection attempts.",
		},
	)

	dbConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atlas",
			Subsystem: "db",
			Name:      "connected",
			Help:      "Whether the last connection transition was a success (1) or a failure (0).",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		rpcRequests,
		rpcDuration,
		rateLimited,
		dbReconnects,
		dbConnectFailures,
		dbConnected,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight notes a request entering the server.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight notes a request leaving the server.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRPCRequest records one dispatched RPC method call.
func RecordRPCRequest(method string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	rpcRequests.WithLabelValues(method, result).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRateLimited records a request rejected at the gate.
func RecordRateLimited() { rateLimited.Inc() }

// RecordReconnect records a successful database handle rebuild.
func RecordReconnect() {
	dbReconnects.Inc()
	dbConnected.Set(1)
}

// RecordConnectFailure records a failed database connection attempt.
func RecordConnectFailure() {
	dbConnectFailures.Inc()
	dbConnected.Set(0)
}
