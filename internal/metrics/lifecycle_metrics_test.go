package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewLifecycleMetrics(t *testing.T) {
	m := NewLifecycleMetrics()
	if m == nil {
		t.Fatal("NewLifecycleMetrics should not return nil")
	}
	if m.operations == nil || m.duration == nil || m.inFlight == nil || m.trashCompensations == nil {
		t.Fatal("all collectors must be initialized")
	}

	// Повторная регистрация в том же реестре должна переиспользовать коллекторы.
	again := NewLifecycleMetrics()
	if again.operations != m.operations {
		t.Fatal("expected existing collector to be reused")
	}
}

func TestLifecycleMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLifecycleMetricsWithRegisterer(registry)

	m.RecordOperation("complete", ResultOK)
	m.RecordOperation("complete", ResultOK)
	m.RecordOperation("cancel", ResultInvalidTransition)
	m.ObserveDuration("complete", 20*time.Millisecond)
	m.InFlightStarted()
	m.InFlightStarted()
	m.InFlightFinished()
	m.RecordTrashCompensation("category")

	if got := counterValue(t, m.operations.WithLabelValues("complete", ResultOK)); got != 2 {
		t.Fatalf("expected 2 completed operations, got %v", got)
	}
	if got := counterValue(t, m.operations.WithLabelValues("cancel", ResultInvalidTransition)); got != 1 {
		t.Fatalf("expected 1 invalid transition, got %v", got)
	}
	if got := gaugeValue(t, m.inFlight); got != 1 {
		t.Fatalf("expected 1 in-flight mutation, got %v", got)
	}
	if got := counterValue(t, m.trashCompensations.WithLabelValues("category")); got != 1 {
		t.Fatalf("expected 1 compensation, got %v", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("expected 4 metric families, got %d", len(families))
	}
}

func TestLifecycleMetrics_NilSafe(t *testing.T) {
	var m *LifecycleMetrics
	m.RecordOperation("create", ResultOK)
	m.ObserveDuration("create", time.Second)
	m.InFlightStarted()
	m.InFlightFinished()
	m.RecordTrashCompensation("order")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}
