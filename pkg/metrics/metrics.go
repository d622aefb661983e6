// Package metrics exposes herd's Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes used as label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeInvalid   = "invalid"
)

// Metrics tracks lifecycle operations and health checks. A nil *Metrics
// records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inProgress  *prometheus.GaugeVec
	checks      *prometheus.CounterVec
	unhealthy   *prometheus.GaugeVec
	tasksQueued prometheus.Gauge
}

// New creates an unregistered set of metrics.
func New() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herd_operations_total",
			Help: "Lifecycle operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "herd_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"kind"}),
		inProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "herd_operations_in_progress",
			Help: "Lifecycle operations currently running",
		}, []string{"kind"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herd_health_checks_total",
			Help: "Health checks executed by kind and result",
		}, []string{"kind", "healthy"}),
		unhealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "herd_cluster_unhealthy_checks",
			Help: "Failing health checks in the last run per cluster",
		}, []string{"cluster"}),
		tasksQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "herd_tasks_running",
			Help: "Asynchronous lifecycle tasks not yet finished",
		}),
	}
}

// Register registers the metrics on reg, or the default registerer when
// reg is nil. Metrics already registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.inProgress, m.checks, m.unhealthy, m.tasksQueued} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// RecordOperationStart marks an operation of kind as running.
func (m *Metrics) RecordOperationStart(kind string) {
	if m == nil {
		return
	}
	m.inProgress.WithLabelValues(kind).Inc()
}

// RecordOperationEnd records the outcome and duration of an operation.
func (m *Metrics) RecordOperationEnd(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inProgress.WithLabelValues(kind).Dec()
	m.operations.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordCheck counts one executed health check.
func (m *Metrics) RecordCheck(kind string, healthy bool) {
	if m == nil {
		return
	}
	label := "false"
	if healthy {
		label = "true"
	}
	m.checks.WithLabelValues(kind, label).Inc()
}

// SetUnhealthy sets the number of failing checks of a cluster.
func (m *Metrics) SetUnhealthy(clusterID string, n int) {
	if m == nil {
		return
	}
	m.unhealthy.WithLabelValues(clusterID).Set(float64(n))
}

// RecordTaskStart marks an asynchronous task as running.
func (m *Metrics) RecordTaskStart() {
	if m == nil {
		return
	}
	m.tasksQueued.Inc()
}

// RecordTaskEnd marks an asynchronous task as finished.
func (m *Metrics) RecordTaskEnd() {
	if m == nil {
		return
	}
	m.tasksQueued.Dec()
}
