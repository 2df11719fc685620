package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики публикации transactional outbox.
type OutboxMetrics struct {
	attempts         *prometheus.CounterVec
	pending          prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox (nil registerer — DefaultRegisterer).
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderapi_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"})),
		pending: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderapi_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		})),
		oldestPendingAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderapi_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		})),
	}
}

// RecordAttempt увеличивает счётчик попыток с результатом result.
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер и возраст очереди.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.oldestPendingAge.Set(max(oldestAge, 0).Seconds())
}

// CleanupMetrics — метрики очистки ключей идемпотентности.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики cleanup-воркера.
func NewCleanupMetrics(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderapi_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"})),
		deleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderapi_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		})),
		lastDeleted: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderapi_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		})),
	}
}

// ObserveRun учитывает завершённый цикл очистки.
func (m *CleanupMetrics) ObserveRun(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.runs.WithLabelValues(ResultError).Inc()
		return
	}
	m.runs.WithLabelValues(ResultOK).Inc()
	m.deleted.Add(float64(deleted))
	m.lastDeleted.Set(float64(deleted))
}
