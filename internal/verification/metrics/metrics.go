package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification runs.
type Metrics struct {
	// Runs started, by whether the cart held a restricted item
	RunsStarted *prometheus.CounterVec

	// Runs finished, by outcome kind and detail ("approved/camera", "aborted/user_cancelled")
	RunsFinished *prometheus.CounterVec

	// Escalations from SAMPLING to AWAITING_DOCUMENT
	Escalations prometheus.Counter

	// Document submissions per finished run
	LookupAttempts prometheus.Histogram

	// Wall time from Start to the terminal outcome
	RunDuration *prometheus.HistogramVec

	// Runs not yet terminal
	ActiveRuns prometheus.Gauge
}

// New registers the run metrics on reg (nil uses the default registerer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_runs_started_total",
			Help: "Verification runs started",
		}, []string{"restricted"}),

		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_runs_finished_total",
			Help: "Verification runs finished by outcome",
		}, []string{"outcome"}),

		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "agegate_document_escalations_total",
			Help: "Runs that required a document check after the camera estimate",
		}),

		LookupAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agegate_run_lookup_attempts",
			Help:    "Document submissions per finished run",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agegate_run_duration_seconds",
			Help:    "Time from run start to outcome",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"kind"}),

		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agegate_active_runs",
			Help: "Verification runs that have not reached a terminal state",
		}),
	}
}

func (m *Metrics) IncrementRunStarted(restricted bool) {
	if m == nil {
		return
	}
	label := "false"
	if restricted {
		label = "true"
	}
	m.RunsStarted.WithLabelValues(label).Inc()
	m.ActiveRuns.Inc()
}

func (m *Metrics) IncrementEscalation() {
	if m != nil {
		m.Escalations.Inc()
	}
}

func (m *Metrics) ObserveRunFinished(outcome, kind string, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(outcome).Inc()
	m.LookupAttempts.Observe(float64(attempts))
	m.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.ActiveRuns.Dec()
}
