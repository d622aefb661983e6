package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetrics(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg), "registering twice is tolerated")

	m.RecordOperationStart("scale_cluster")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inProgress.WithLabelValues("scale_cluster")))

	m.RecordOperationEnd("scale_cluster", OutcomeFailed, 2*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inProgress.WithLabelValues("scale_cluster")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("scale_cluster", OutcomeFailed)))
}

func TestHealthMetrics(t *testing.T) {
	m := New()
	m.RecordCheck("tcp", true)
	m.RecordCheck("tcp", false)
	m.RecordCheck("tcp", false)
	m.SetUnhealthy("c1", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("tcp", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.unhealthy.WithLabelValues("c1")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperationStart("validate")
		m.RecordOperationEnd("validate", OutcomeSucceeded, time.Second)
		m.RecordCheck("http", true)
		m.SetUnhealthy("c1", 0)
		m.RecordTaskStart()
		m.RecordTaskEnd()
	})
}
