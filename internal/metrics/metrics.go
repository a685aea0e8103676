package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Chat metrics
	ChatRequestsTotal   *prometheus.CounterVec
	ChatStreamsActive   prometheus.Gauge
	ChatTurnDuration    prometheus.Histogram

	// Tool metrics
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Settings metrics
	SettingsUpdatesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ChatRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat requests",
			},
			[]string{"status"},
		),
		ChatStreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_streams_active",
				Help: "Number of chat event streams currently open",
			},
		),
		ChatTurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chat_turn_duration_seconds",
				Help:    "Duration of complete chat runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of MCP tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of MCP tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		SettingsUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settings_updates_total",
				Help: "Total number of runtime settings updates",
			},
			[]string{"status"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ChatRequestsTotal)
	m.registry.MustRegister(m.ChatStreamsActive)
	m.registry.MustRegister(m.ChatTurnDuration)
	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)
	m.registry.MustRegister(m.SettingsUpdatesTotal)
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
