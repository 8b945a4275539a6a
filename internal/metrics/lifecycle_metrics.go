package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для метки result.
const (
	ResultOK                = "ok"
	ResultShortage          = "shortage"
	ResultInvalidTransition = "invalid_transition"
	ResultInFlight          = "in_flight"
	ResultNotFound          = "not_found"
	ResultError             = "error"
)

// LifecycleMetrics содержит метрики операций над заказами и корзиной.
type LifecycleMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge

	// Компенсации оптимистичного счётчика корзины.
	trashCompensations *prometheus.CounterVec
}

// NewLifecycleMetrics создаёт метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer создаёт метрики в заданном реестре (удобно в тестах).
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_lifecycle_operations_total",
			Help: "Total number of order and recycle bin operations grouped by operation and result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_lifecycle_operation_duration_seconds",
			Help:    "Duration of remote calls issued by lifecycle operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_lifecycle_in_flight",
			Help: "Number of mutations currently waiting for a remote response",
		}),
		trashCompensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_trash_count_compensations_total",
			Help: "Total number of optimistic trash count rollbacks grouped by entity kind",
		}, []string{"kind"}),
	}
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation фиксирует результат операции. Безопасен для nil.
func (m *LifecycleMetrics) RecordOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// ObserveDuration записывает длительность удалённого вызова.
func (m *LifecycleMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// InFlightStarted увеличивает число ожидающих мутаций.
func (m *LifecycleMetrics) InFlightStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// InFlightFinished уменьшает число ожидающих мутаций.
func (m *LifecycleMetrics) InFlightFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// RecordTrashCompensation фиксирует откат оптимистичного счётчика.
func (m *LifecycleMetrics) RecordTrashCompensation(kind string) {
	if m == nil {
		return
	}
	m.trashCompensations.WithLabelValues(kind).Inc()
}
