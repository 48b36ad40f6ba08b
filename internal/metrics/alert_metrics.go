package metrics

import "github.com/prometheus/client_golang/prometheus"

// AlertMetrics — метрики обработчика событий низкого остатка.
type AlertMetrics struct {
	events   *prometheus.CounterVec
	lowStock prometheus.Counter
	skipped  prometheus.Counter
}

// NewAlertMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewAlertMetrics() *AlertMetrics {
	return NewAlertMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewAlertMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewAlertMetricsWithRegisterer(registerer prometheus.Registerer) *AlertMetrics {
	return &AlertMetrics{
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_alert_events_consumed_total",
			Help: "Total number of events consumed by the stock alert handler",
		}, []string{"event_type"}),
		lowStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_low_stock_alerts_total",
			Help: "Total number of low stock alerts raised",
		}),
		skipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_alert_events_skipped_total",
			Help: "Total number of events ignored by the stock alert handler",
		}),
	}
}

// RecordEvent учитывает принятое событие.
func (m *AlertMetrics) RecordEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

// RecordLowStock учитывает поднятый сигнал низкого остатка.
func (m *AlertMetrics) RecordLowStock() {
	m.lowStock.Inc()
}

// RecordSkipped учитывает пропущенное событие.
func (m *AlertMetrics) RecordSkipped() {
	m.skipped.Inc()
}
