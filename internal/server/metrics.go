package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the task collectors exported on /metrics.
type Metrics struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the task collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calclab",
			Name:      "tasks_total",
			Help:      "Tasks handled, by task kind and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "calclab",
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"task"}),
	}
	reg.MustRegister(m.tasks, m.duration)
	return m
}

func (m *Metrics) observe(task, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(task, outcome).Inc()
	m.duration.WithLabelValues(task).Observe(elapsed.Seconds())
}
