// Package metrics exposes Prometheus instrumentation for plan negotiation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plan_negotiation"

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	generation *prometheus.HistogramVec
	swept      prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Negotiation operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of plan generation oracle calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_sessions_deleted_total",
			Help:      "Abandoned conversations removed by the sweeper.",
		}),
	}
	m.registry.MustRegister(
		m.operations,
		m.generation,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation counts a finished engine operation.
func (m *Metrics) ObserveOperation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// ObserveGeneration records one oracle round trip.
func (m *Metrics) ObserveGeneration(outcome string, elapsed time.Duration) {
	m.generation.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AddSwept counts sessions removed by the stale-session sweeper.
func (m *Metrics) AddSwept(n int64) {
	m.swept.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
