package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for capture sessions and the scan pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Frames evaluated by the card detector, by whether a card was present
	FramesEvaluated *prometheus.CounterVec

	// Auto-captures fired by the stability counter
	Captures prometheus.Counter

	// Pipeline outcomes by result (ok, incomplete, decode, recognition, ...) and source
	ScanOutcome *prometheus.CounterVec

	// Latency of each pipeline stage
	StageLatency *prometheus.HistogramVec

	// Records persisted, by scan area
	RecordsSaved *prometheus.CounterVec
}

// New registers all metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idbadge_frames_evaluated_total",
			Help: "Frames evaluated by the card detector",
		}, []string{"present"}),

		Captures: f.NewCounter(prometheus.CounterOpts{
			Name: "idbadge_auto_captures_total",
			Help: "Captures fired after the stability target was reached",
		}),

		ScanOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idbadge_scan_outcomes_total",
			Help: "Scan pipeline outcomes by result and source",
		}, []string{"result", "source"}), // source: "live", "upload", "watch", "cli"

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idbadge_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}), // stage: "normalize", "recognize", "extract", "save"

		RecordsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idbadge_records_saved_total",
			Help: "Identity records persisted by scan area",
		}, []string{"area"}),
	}
}

// ObserveFrame records one detector evaluation
func (m *Metrics) ObserveFrame(present bool) {
	if m == nil {
		return
	}
	label := "false"
	if present {
		label = "true"
	}
	m.FramesEvaluated.WithLabelValues(label).Inc()
}

// IncrementCaptures records an auto-capture
func (m *Metrics) IncrementCaptures() {
	if m != nil {
		m.Captures.Inc()
	}
}

// IncrementOutcome records a pipeline outcome
func (m *Metrics) IncrementOutcome(result, source string) {
	if m != nil {
		m.ScanOutcome.WithLabelValues(result, source).Inc()
	}
}

// ObserveStage records the duration of a pipeline stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementSaved records a persisted record
func (m *Metrics) IncrementSaved(area string) {
	if m != nil {
		m.RecordsSaved.WithLabelValues(area).Inc()
	}
}
