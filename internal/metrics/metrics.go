// Package metrics centralizes the gateway's Prometheus instruments and a
// latency histogram, generalizing main.go's single openGauge into a small
// registry shared by cmd/lsproxy's spawn wiring and the HTTP façade.
package metrics

import (
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters/gauges the gateway exposes on /metrics plus
// an in-memory latency histogram for HTTP request handling.
type Metrics struct {
	OpenSessions     prometheus.Gauge
	OpenContainers   prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	RequestErrors    *prometheus.CounterVec
	ContainerSpawns  prometheus.Counter
	HealthCheckFails prometheus.Counter

	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// New builds and registers the gateway's metrics with the default
// Prometheus registry, mirroring main.go's prometheus.MustRegister(openGauge)
// pattern for each instrument.
func New() *Metrics {
	m := &Metrics{
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lsproxy_open_analyzer_sessions",
			Help: "Number of live in-process analyzer sessions.",
		}),
		OpenContainers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lsproxy_open_containers",
			Help: "Number of live analyzer containers.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lsproxy_requests_total",
			Help: "Total HTTP requests handled, by route.",
		}, []string{"route"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lsproxy_request_errors_total",
			Help: "Total HTTP requests that ended in an error, by route and kind.",
		}, []string{"route", "kind"}),
		ContainerSpawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsproxy_container_spawns_total",
			Help: "Total analyzer containers created.",
		}),
		HealthCheckFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsproxy_health_check_failures_total",
			Help: "Total container health checks that timed out.",
		}),
		// 1ms floor, 5 minute ceiling, 3 significant figures - generous
		// enough for both in-process (microsecond) and container (second)
		// analyzer calls.
		hist: hdrhistogram.New(1, int64(5*time.Minute/time.Millisecond), 3),
	}
	prometheus.MustRegister(
		m.OpenSessions, m.OpenContainers, m.RequestsTotal, m.RequestErrors,
		m.ContainerSpawns, m.HealthCheckFails,
	)
	return m
}

// ObserveLatency records a completed HTTP request's duration.
func (m *Metrics) ObserveLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.hist.RecordValue(d.Milliseconds())
}

// LatencySnapshot returns the p50/p95/p99 latency in milliseconds observed
// so far.
func (m *Metrics) LatencySnapshot() (p50, p95, p99 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hist.ValueAtQuantile(50), m.hist.ValueAtQuantile(95), m.hist.ValueAtQuantile(99)
}
