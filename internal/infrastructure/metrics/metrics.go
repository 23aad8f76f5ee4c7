// Package metrics exposes workflow counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// Prometheus implements ports.Metrics on its own registry.
type Prometheus struct {
	registry    *prometheus.Registry
	routes      *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	httpReqs    *prometheus.CounterVec
}

// New registers the assistant's collectors plus the Go runtime collectors.
func New() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ira_routes_total",
			Help: "Supervisor routing decisions by route.",
		}, []string{"route"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ira_tool_calls_total",
			Help: "Research tool calls by tool and result.",
		}, []string{"tool", "result"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ira_invocations_total",
			Help: "Workflow invocations by route and outcome.",
		}, []string{"route", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ira_invocation_duration_seconds",
			Help:    "Workflow invocation latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"route"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ira_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"method", "pattern", "code"}),
	}

	m.registry.MustRegister(
		m.routes, m.toolCalls, m.invocations, m.latency, m.httpReqs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRoute counts a supervisor decision.
func (m *Prometheus) ObserveRoute(route entities.Route) {
	m.routes.WithLabelValues(string(route)).Inc()
}

// ObserveToolCall counts a research tool call by result.
func (m *Prometheus) ObserveToolCall(tool string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

// ObserveInvocation records a workflow invocation's outcome and latency.
func (m *Prometheus) ObserveInvocation(route entities.Route, outcome string, elapsed time.Duration) {
	label := string(route)
	if label == "" {
		label = "none"
	}
	m.invocations.WithLabelValues(label, outcome).Inc()
	m.latency.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveHTTP counts one served request.
func (m *Prometheus) ObserveHTTP(method, pattern string, code int) {
	m.httpReqs.WithLabelValues(method, pattern, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}
