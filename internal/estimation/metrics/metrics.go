package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the age-estimation sampler.
type Metrics struct {
	// Processed ticks by emitted signal
	Ticks *prometheus.CounterVec

	// Ticks skipped because the frame source had no frame
	MissedFrames prometheus.Counter

	// Estimator call failures by stage ("detect", "classify")
	EstimatorErrors *prometheus.CounterVec

	// Time spent detecting and classifying one frame
	TickLatency prometheus.Histogram
}

// New registers the sampler metrics on reg (nil uses the default registerer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_sampler_ticks_total",
			Help: "Sampler ticks that processed a frame, by signal",
		}, []string{"signal"}),

		MissedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "agegate_sampler_missed_frames_total",
			Help: "Sampler ticks skipped because no frame was available",
		}),

		EstimatorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_sampler_estimator_errors_total",
			Help: "Estimator failures by stage",
		}, []string{"stage"}),

		TickLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agegate_sampler_tick_duration_seconds",
			Help:    "Duration of face detection plus age classification for one frame",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.03, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementTick(signal string) {
	if m != nil {
		m.Ticks.WithLabelValues(signal).Inc()
	}
}

func (m *Metrics) IncrementMissedFrame() {
	if m != nil {
		m.MissedFrames.Inc()
	}
}

func (m *Metrics) IncrementEstimatorError(stage string) {
	if m != nil {
		m.EstimatorErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveTickLatency(d time.Duration) {
	if m != nil {
		m.TickLatency.Observe(d.Seconds())
	}
}
