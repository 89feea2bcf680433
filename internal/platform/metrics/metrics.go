// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transform outcomes used as the "result" label.
const (
	ResultSuccess      = "success"
	ResultInvalidInput = "invalid_input"
	ResultMapping      = "mapping_failure"
	ResultStorage      = "storage_failure"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	TransformTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_transform_total",
			Help: "Submissions processed, by result",
		},
		[]string{"result"},
	)

	BundleEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fhir_bundle_entries",
			Help:    "Number of entries per produced bundle",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_notify_failures_total",
			Help: "bundle.created events that could not be delivered, by channel",
		},
		[]string{"channel"},
	)
)

func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordTransform(result string) {
	TransformTotal.WithLabelValues(result).Inc()
}

func ObserveBundleEntries(n int) {
	BundleEntries.Observe(float64(n))
}

func RecordNotifyFailure(channel string) {
	NotifyFailuresTotal.WithLabelValues(channel).Inc()
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
