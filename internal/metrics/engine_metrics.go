package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций движка.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// EngineMetrics содержит метрики движка заказов и остатков.
// Nil-получатель допустим: все методы становятся no-op.
type EngineMetrics struct {
	operations     *prometheus.CounterVec
	ruleViolations *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	stockDeducted  prometheus.Counter
}

// NewEngineMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewEngineMetrics() *EngineMetrics {
	return NewEngineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewEngineMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewEngineMetricsWithRegisterer(registerer prometheus.Registerer) *EngineMetrics {
	return &EngineMetrics{
		operations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderapi_engine_operations_total",
			Help: "Total number of engine operations grouped by operation and result.",
		}, []string{"operation", "result"})),
		ruleViolations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderapi_engine_rule_violations_total",
			Help: "Total number of rejected operations grouped by business rule.",
		}, []string{"reason"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderapi_engine_operation_duration_seconds",
			Help:    "Duration of engine operations in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"})),
		stockDeducted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderapi_engine_stock_deducted_units_total",
			Help: "Total number of product units deducted by order items.",
		})),
	}
}

// ObserveOperation учитывает завершение операции.
func (m *EngineMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRuleViolation увеличивает счётчик нарушений правила reason.
func (m *EngineMetrics) RecordRuleViolation(reason string) {
	if m == nil {
		return
	}
	m.ruleViolations.WithLabelValues(reason).Inc()
}

// RecordStockDeducted учитывает списанные единицы товара.
func (m *EngineMetrics) RecordStockDeducted(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockDeducted.Add(float64(units))
}
