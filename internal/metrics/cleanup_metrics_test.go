package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCleanupMetrics_ObserveRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCleanupMetricsWithRegisterer(registry)

	m.AddDeleted(3)
	m.AddDeleted(0)
	m.ObserveRun(3, nil)
	m.ObserveRun(0, errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.deleted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lastDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultError)))

	again := NewCleanupMetricsWithRegisterer(registry)
	assert.Same(t, m.runs, again.runs, "re-registration reuses collectors")
}

func TestCleanupMetrics_NilSafe(t *testing.T) {
	var m *CleanupMetrics
	m.ObserveRun(1, nil)
	m.AddDeleted(1)
}
