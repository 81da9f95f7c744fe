package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document lookups.
type Metrics struct {
	// Lookups by result ("found", "unknown", "error")
	Lookups *prometheus.CounterVec

	// Lookup failures by provider error category
	Failures *prometheus.CounterVec

	// End-to-end lookup latency including the registry's own delay
	LookupDuration prometheus.Histogram

	// 1 while the registry circuit is open
	CircuitOpen prometheus.Gauge
}

// New registers the lookup metrics on reg (nil uses the default registerer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_document_lookups_total",
			Help: "Document lookups by result",
		}, []string{"result"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_document_lookup_failures_total",
			Help: "Document lookup failures by category",
		}, []string{"category"}),

		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agegate_document_lookup_duration_seconds",
			Help:    "Duration of document lookups",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
		}),

		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agegate_document_circuit_open",
			Help: "Whether the document registry circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncrementLookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementFailure(category string) {
	if m != nil {
		m.Failures.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) ObserveLookup(d time.Duration) {
	if m != nil {
		m.LookupDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
