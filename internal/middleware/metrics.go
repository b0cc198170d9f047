package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricHTTPRequestDuration = "http_request_duration_seconds"
	MetricHTTPRequestsTotal   = "http_requests_total"
	MetricRateLimitBlocked    = "rate_limit_blocked_total"
)

// HTTPMetrics contains Prometheus metrics for the HTTP surface.
// All operations are thread-safe.
type HTTPMetrics struct {
	requestDuration  *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	rateLimitBlocked *prometheus.CounterVec
}

// NewHTTPMetrics creates a new HTTPMetrics instance with all collectors
// initialized. The metrics are not registered; call Register.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request latency in seconds by method, route, and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Total requests blocked by rate limiting, by route",
			},
			[]string{"route"},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *HTTPMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requestDuration, m.requestsTotal, m.rateLimitBlocked} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// normalizeRoute collapses dynamic path segments into route patterns so
// metric label cardinality stays bounded. Permit routes carry a variant
// segment followed by an entity UUID.
func normalizeRoute(path string) string {
	staticRoutes := map[string]bool{
		"/":                           true,
		"/health":                     true,
		"/ready":                      true,
		"/metrics":                    true,
		"/permits/mine":               true,
		"/internal/payments/callback": true,
	}
	if staticRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/permits/"); ok {
		parts := strings.Split(rest, "/")
		switch len(parts) {
		case 1:
			// /permits/{variant}
			return "/permits/{variant}"
		case 2:
			// /permits/{variant}/{id}
			return "/permits/{variant}/{id}"
		default:
			// /permits/{variant}/{id}/approve etc.
			return "/permits/{variant}/{id}/" + strings.Join(parts[2:], "/")
		}
	}

	if strings.HasPrefix(path, "/documents/") {
		return "/documents/{key}"
	}

	return "other"
}

// Instrument wraps a handler with request duration and count metrics.
func (m *HTTPMetrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		status := strconv.Itoa(rw.statusCode)
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(r.Method, route, status).Inc()
		if rw.statusCode == http.StatusTooManyRequests {
			m.rateLimitBlocked.WithLabelValues(route).Inc()
		}
	})
}
