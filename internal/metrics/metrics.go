package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forPelevin/tapalign/internal/types"
)

// Run collects the counters of one pipeline run. The registry is private so
// concurrent runs in one process never share series.
type Run struct {
	reg *prometheus.Registry

	matches       *prometheus.CounterVec
	labels        *prometheus.CounterVec
	labelErrors   prometheus.Counter
	labelDuration prometheus.Histogram
	stageDuration *prometheus.GaugeVec
	framesSampled prometheus.Gauge
	untimedFrames prometheus.Counter
}

func NewRun() *Run {
	r := &Run{reg: prometheus.NewRegistry()}
	r.matches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tapalign",
		Name:      "matches_total",
		Help:      "Observations by the matching tier that resolved them",
	}, []string{"tier"})
	r.labels = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tapalign",
		Name:      "labels_total",
		Help:      "Observations by labeler answer",
	}, []string{"label"})
	r.labelErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tapalign",
		Name:      "labeler_errors_total",
		Help:      "Labeler calls that failed after retries",
	})
	r.labelDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tapalign",
		Name:      "labeler_duration_seconds",
		Help:      "Time spent per labeler call",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
	})
	r.stageDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tapalign",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage",
	}, []string{"stage"})
	r.framesSampled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tapalign",
		Name:      "frames_sampled",
		Help:      "Frames extracted from the video",
	})
	r.untimedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tapalign",
		Name:      "untimed_observations_total",
		Help:      "Observations whose identifier carried no timestamp",
	})
	r.reg.MustRegister(r.matches, r.labels, r.labelErrors, r.labelDuration, r.stageDuration, r.framesSampled, r.untimedFrames)
	return r
}

// A nil *Run is valid and records nothing.

func (r *Run) ObserveMatch(tier types.MatchTier) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(string(tier)).Inc()
}

func (r *Run) ObserveLabel(label types.Label, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.labelDuration.Observe(took.Seconds())
	if err != nil {
		r.labelErrors.Inc()
		return
	}
	r.labels.WithLabelValues(string(label)).Inc()
}

func (r *Run) ObserveUntimed() {
	if r == nil {
		return
	}
	r.untimedFrames.Inc()
}

func (r *Run) SetFramesSampled(n int) {
	if r == nil {
		return
	}
	r.framesSampled.Set(float64(n))
}

// Stage records the wall time of a stage; use as defer m.Stage("x")().
func (r *Run) Stage(name string) func() {
	start := time.Now()
	return func() {
		if r == nil {
			return
		}
		r.stageDuration.WithLabelValues(name).Set(time.Since(start).Seconds())
	}
}

func (r *Run) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile dumps the run's series in the node_exporter textfile format.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
