package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus instrumentation. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	stepRetries   *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contractpipe",
			Name:      "runs_started_total",
			Help:      "Analysis runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractpipe",
			Name:      "runs_finished_total",
			Help:      "Analysis runs finished, by terminal status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contractpipe",
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of node executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 3, 10),
		}, []string{"step"}),
		stepRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractpipe",
			Name:      "step_retries_total",
			Help:      "Retry attempts consumed, by step.",
		}, []string{"step"}),
	}
	reg.MustRegister(m.runsStarted, m.runsCompleted, m.stepDuration, m.stepRetries)
	return m
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *Metrics) runFinished(status RunStatus) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeStep(step Step, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(string(step)).Observe(duration.Seconds())
}

func (m *Metrics) stepRetried(step Step) {
	if m == nil {
		return
	}
	m.stepRetries.WithLabelValues(string(step)).Inc()
}
