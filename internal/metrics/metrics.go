package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for analysis runs.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Reasons a special point is dropped.
const (
	DropInvalid       = "invalid"
	DropLowConfidence = "low_confidence"
)

// Metrics holds the recorder's Prometheus collectors. Each instance owns a
// private registry so tests and multiple app instances never collide.
type Metrics struct {
	Registry *prometheus.Registry

	RecordingsStarted   prometheus.Counter
	RecordingsCompleted prometheus.Counter
	SegmentsAppended    prometheus.Counter
	AnalysisRuns        *prometheus.CounterVec
	AnalysisAttempts    *prometheus.CounterVec
	AnalysisDuration    prometheus.Histogram
	PointsDropped       *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RecordingsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breeze_recordings_started_total",
			Help: "Recordings started by the capture controller",
		}),
		RecordingsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breeze_recordings_completed_total",
			Help: "Recordings finalized and saved",
		}),
		SegmentsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breeze_segments_appended_total",
			Help: "Transcript segments appended to active recordings",
		}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breeze_analysis_runs_total",
			Help: "Analysis runs by provider and outcome",
		}, []string{"provider", "outcome"}),
		AnalysisAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breeze_analysis_attempts_total",
			Help: "Provider calls including retries",
		}, []string{"provider"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breeze_analysis_duration_seconds",
			Help:    "Wall time of analysis runs including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		PointsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breeze_analysis_points_dropped_total",
			Help: "Special points discarded during validation or filtering",
		}, []string{"reason"}),
	}

	m.Registry.MustRegister(
		m.RecordingsStarted,
		m.RecordingsCompleted,
		m.SegmentsAppended,
		m.AnalysisRuns,
		m.AnalysisAttempts,
		m.AnalysisDuration,
		m.PointsDropped,
	)
	return m
}

// Snapshot flattens counter values for display in the UI.
func (m *Metrics) Snapshot() map[string]float64 {
	out := map[string]float64{}
	families, err := m.Registry.Gather()
	if err != nil {
		return out
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName()
			for _, label := range metric.GetLabel() {
				name += "|" + label.GetName() + "=" + label.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[name] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[name+"|count"] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}
