package continuity

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics of tracking runs
type Metrics struct {
	framesTotal  *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	gateRejected prometheus.Counter
}

// NewMetrics creates and registers tracking metrics
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotrack_tracking_frames_total",
				Help: "Total number of frames processed by tracking runs",
			},
			[]string{"status"}, // status: tracked, empty, failed, skipped
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotrack_tracking_runs_total",
				Help: "Total number of tracking runs",
			},
			[]string{"outcome"}, // outcome: completed, cancelled, failed
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annotrack_tracking_run_duration_seconds",
				Help:    "Time taken by tracking run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		gateRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "annotrack_tracking_gate_rejected_total",
				Help: "Total number of detections dropped by motion gate",
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesTotal.Describe(ch)
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.gateRejected.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.framesTotal.Collect(ch)
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.gateRejected.Collect(ch)
}

func (m *Metrics) recordFrame(status string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) recordRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) recordRejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.gateRejected.Add(float64(n))
}
