package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus metrics registry.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Metrics holds the process-local Prometheus registry and the HTTP-level
// instruments the proxy records into.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	AgentsAlive      prometheus.Gauge
}

// InitMetrics builds a registry with the standard collectors plus AION's
// own instruments. Returns nil when metrics are disabled.
func InitMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aion",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Requests handled by the proxy, by agent, method and status.",
		}, []string{"agent", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aion",
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of proxied requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "method"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aion",
			Subsystem: "proxy",
			Name:      "requests_in_flight",
			Help:      "Proxied requests currently being served.",
		}),
		AgentsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aion",
			Subsystem: "supervisor",
			Name:      "agents_alive",
			Help:      "Agent processes currently alive.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RequestsInFlight, m.AgentsAlive)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
