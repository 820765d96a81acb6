// Package metrics provides Prometheus metrics collection for the gate.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics - used by the application
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal   atomic.Pointer[prometheus.CounterVec]
	requestDuration atomic.Pointer[prometheus.HistogramVec]
	verdictsTotal   atomic.Pointer[prometheus.CounterVec]
	usageWriteFails atomic.Pointer[prometheus.Counter]
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	// HTTP request counter: tracks all requests by method, path (normalized), and status code
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonegate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	// Request duration histogram: tracks latency distribution
	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zonegate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	// Verdict counter: one label per authorization outcome reason
	verdictsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zonegate",
			Subsystem: "authz",
			Name:      "verdicts_total",
			Help:      "Total number of authorization verdicts by outcome reason",
		},
		[]string{"reason"},
	)
	if err := reg.Register(verdictsTotalVec); err != nil {
		return fmt.Errorf("failed to register verdictsTotal: %w", err)
	}

	// Usage accounting failures surface as denied requests; count them
	// separately so a broken database is visible without log scraping.
	usageWriteFailsCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zonegate",
			Subsystem: "authz",
			Name:      "usage_write_failures_total",
			Help:      "Total number of failed token usage accounting writes",
		},
	)
	if err := reg.Register(usageWriteFailsCounter); err != nil {
		return fmt.Errorf("failed to register usageWriteFails: %w", err)
	}

	// Info gauge: static metric with constant label values for build info
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zonegate",
			Subsystem: "http",
			Name:      "info",
			Help:      "Gate version and build information",
		},
		[]string{"version"},
	)
	infoGaugeInstance := infoGaugeVec.WithLabelValues("1.0.0")
	if err := reg.Register(infoGaugeVec); err != nil {
		return fmt.Errorf("failed to register infoGauge: %w", err)
	}
	infoGaugeInstance.Set(1)

	// Store metrics in atomics for lock-free access in record functions
	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	verdictsTotal.Store(verdictsTotalVec)
	usageWriteFails.Store(&usageWriteFailsCounter)

	return nil
}

// RecordRequest increments the requests counter for the given method, path, and status code.
// The path should be normalized (e.g., "/api/realms/:id" instead of "/api/realms/123").
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request.
// Duration should be in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordVerdict increments the verdict counter for the given outcome reason.
// Reasons mirror the policy verdict reasons, e.g. "Allowed", "InvalidToken".
func RecordVerdict(reason string) {
	if counter := verdictsTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordUsageWriteFailure increments the usage accounting failure counter.
func RecordUsageWriteFailure() {
	if counter := usageWriteFails.Load(); counter != nil {
		(*counter).Inc()
	}
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
// This handler should be registered at /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GetMetricsText returns the Prometheus text-format output from a registry.
// This is useful for testing and debugging.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}

	return string(body), nil
}
