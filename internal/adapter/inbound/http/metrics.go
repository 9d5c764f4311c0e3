// Package http provides the HTTP transport adapter: the streamable-HTTP MCP
// listener plus its health and metrics endpoints.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP transport's own Prometheus metrics (request
// volume and latency at the listener). Domain-level metrics (executions,
// type-check latency, sandbox pool hits, upstream calls) live in
// internal/telemetry instead, since they are recorded by the service and
// sandbox layers rather than this transport adapter.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the HTTP transport's metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by the MCP listener",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "codemodegw",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}
