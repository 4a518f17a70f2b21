// Package metrics owns Hansa's Prometheus collectors.
//
// Collectors live on a private registry so tests and multiple App instances
// never collide on the global default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hansa"

// Metrics groups the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	reg *prometheus.Registry

	opDuration   *prometheus.HistogramVec
	validations  *prometheus.CounterVec
	poolInflight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	wsSessions   prometheus.Gauge
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "op_duration_seconds",
			Help:      "Duration of credential operations by op and result.",
			// bcrypt at cost 12 lands around 200-300ms; keep resolution there.
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op", "result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "validation_total",
			Help:      "Strength validations by outcome.",
		}, []string{"result"}),
		poolInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "pool_inflight",
			Help:      "Hash/verify jobs currently holding a pool slot.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by status class.",
		}, []string{"class"}),
		wsSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "sessions",
			Help:      "Open strength-meter websocket sessions.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.opDuration,
		m.validations,
		m.poolInflight,
		m.httpRequests,
		m.wsSessions,
	)
	return m
}

// Registry exposes the private registry (tests, custom collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveOp records one credential operation.
func (m *Metrics) ObserveOp(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op, result).Observe(d.Seconds())
}

// ObserveValidation counts one strength validation.
func (m *Metrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validations.WithLabelValues(result).Inc()
}

// SetPoolInflight publishes the current number of busy pool slots.
func (m *Metrics) SetPoolInflight(n int64) {
	if m == nil {
		return
	}
	m.poolInflight.Set(float64(n))
}

// ObserveHTTP counts one HTTP response by status class ("2xx", "4xx", ...).
func (m *Metrics) ObserveHTTP(class string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(class).Inc()
}

// WSSessionOpened and WSSessionClosed track open websocket sessions.
func (m *Metrics) WSSessionOpened() {
	if m == nil {
		return
	}
	m.wsSessions.Inc()
}

func (m *Metrics) WSSessionClosed() {
	if m == nil {
		return
	}
	m.wsSessions.Dec()
}
