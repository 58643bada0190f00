package metrics

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics exposes request-level instruments.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := statusClass(c.Writer.Status())

		m.requests.WithLabelValues(route, method, status).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// EngineMetrics counts totals computations served over the API.
type EngineMetrics struct {
	computations *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		computations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_totals_computations_total",
			Help: "Totals computations by target kind.",
		}, []string{"target"}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_totals_failures_total",
			Help: "Failed totals computations by target kind.",
		}, []string{"target"}),
	}
}

func (m *EngineMetrics) RecordComputation(target string) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(target).Inc()
}

func (m *EngineMetrics) RecordFailure(target string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(target).Inc()
}
