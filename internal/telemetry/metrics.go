// Package telemetry wires the gateway's Prometheus metrics and OpenTelemetry
// tracing. The domain and service packages never import prometheus/otel
// directly; they hold a *Metrics and a trace.Tracer passed in at
// construction, so they stay testable without a registry or exporter.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the gateway records: executions,
// type-check latency, and sandbox pool hits (the ones SPEC_FULL's ambient
// stack calls out), plus upstream call outcomes and policy decisions.
type Metrics struct {
	ExecutionsTotal    *prometheus.CounterVec
	ExecuteDuration    prometheus.Histogram
	TypeCheckDuration  prometheus.Histogram
	SandboxPoolHits    prometheus.Counter
	SandboxPoolMisses  prometheus.Counter
	UpstreamCallsTotal *prometheus.CounterVec
	PolicyEvaluations  *prometheus.CounterVec
	ActiveUpstreams    prometheus.Gauge
}

// NewMetrics creates and registers every gateway metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ExecutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "executions_total",
				Help:      "Total execute() calls by outcome",
			},
			[]string{"outcome"}, // completed/failed_typecheck/failed_runtime/timed_out
		),
		ExecuteDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "codemodegw",
				Name:      "execute_duration_seconds",
				Help:      "Wall-clock duration of execute() calls, typecheck plus run",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TypeCheckDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "codemodegw",
				Name:      "typecheck_duration_seconds",
				Help:      "Duration of the type-check sandbox stage",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SandboxPoolHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "sandbox_pool_hits_total",
				Help:      "Execution sandbox runtime acquisitions reusing a pooled goja.Runtime",
			},
		),
		SandboxPoolMisses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "sandbox_pool_misses_total",
				Help:      "Execution sandbox runtime acquisitions that constructed a new goja.Runtime",
			},
		),
		UpstreamCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "upstream_calls_total",
				Help:      "Total callMCPTool invocations by upstream, tool and outcome",
			},
			[]string{"upstream", "tool", "outcome"}, // outcome=ok/error/denied
		),
		PolicyEvaluations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "codemodegw",
				Name:      "policy_evaluations_total",
				Help:      "Total CEL policy gate evaluations by result",
			},
			[]string{"result"}, // allow/deny
		),
		ActiveUpstreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "codemodegw",
				Name:      "active_upstreams",
				Help:      "Number of upstreams currently in connected status",
			},
		),
	}
}
