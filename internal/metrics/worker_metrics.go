package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики публикации transactional outbox.
type OutboxMetrics struct {
	attempts  *prometheus.CounterVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
	}
}

// RecordAttempt учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер и возраст backlog.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	m.pending.Set(float64(pending))
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.oldestAge.Set(oldestAge.Seconds())
}

// CleanupMetrics — метрики очистки idempotency-ключей.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCleanupMetrics() *CleanupMetrics {
	return NewCleanupMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCleanupMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewCleanupMetricsWithRegisterer(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordRun учитывает завершённый цикл очистки.
func (m *CleanupMetrics) RecordRun(result string, deleted int) {
	m.runs.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// RecordDeleted учитывает удалённую порцию.
func (m *CleanupMetrics) RecordDeleted(n int) {
	if n > 0 {
		m.deleted.Add(float64(n))
	}
}
