// Package metrics exposes Prometheus collectors for capture submissions.
package metrics

import (
	"time"

	"faceattend/internal/capture"

	"github.com/prometheus/client_golang/prometheus"
)

// Submissions implements capture.Recorder.
type Submissions struct {
	Total    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewSubmissions registers the collectors on reg.
func NewSubmissions(reg prometheus.Registerer) *Submissions {
	s := &Submissions{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faceattend",
			Name:      "submissions_total",
			Help:      "Submissions sent to the attendance service, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faceattend",
			Name:      "submission_duration_seconds",
			Help:      "Time from dispatch to parsed reply.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"mode"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faceattend",
			Name:      "submissions_in_flight",
			Help:      "Submissions currently waiting on the attendance service.",
		}),
	}
	reg.MustRegister(s.Total, s.Duration, s.InFlight)
	return s
}

func (s *Submissions) SubmissionStarted(capture.Mode) {
	s.InFlight.Inc()
}

func (s *Submissions) SubmissionFinished(mode capture.Mode, kind capture.OutcomeKind, elapsed time.Duration) {
	s.InFlight.Dec()
	s.Total.WithLabelValues(mode.String(), string(kind)).Inc()
	s.Duration.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
}
