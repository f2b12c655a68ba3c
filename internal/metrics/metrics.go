// Package metrics exposes Prometheus instrumentation for issuance runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jnst/certificate-issuance/internal/model"
)

// Metrics provides observability for the batch pipeline. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Terminal record states by the stage that ended them
	Records *prometheus.CounterVec

	// Per-stage latency
	StageLatency *prometheus.HistogramVec

	// Runs by result: completed, truncated, aborted, setup_failed
	Runs *prometheus.CounterVec
}

// New registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_records_total",
			Help: "Records reaching a terminal state, by state and failing stage",
		}, []string{"state", "stage"}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certificate_stage_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_runs_total",
			Help: "Batch runs by result",
		}, []string{"result"}),
	}
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage model.Stage, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(string(stage)).Observe(d.Seconds())
	}
}

// RecordOutcome counts a record's terminal state.
func (m *Metrics) RecordOutcome(o model.Outcome) {
	if m != nil {
		m.Records.WithLabelValues(string(o.State), string(o.FailedStage)).Inc()
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(result string) {
	if m != nil {
		m.Runs.WithLabelValues(result).Inc()
	}
}
