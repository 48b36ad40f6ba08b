package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины прерывания продажи для метки reason.
const (
	AbortReasonInvalidInput      = "invalid_input"
	AbortReasonInsufficientStock = "insufficient_stock"
	AbortReasonConflict          = "store_conflict"
	AbortReasonError             = "error"
)

// SaleMetrics содержит метрики фиксации продаж.
type SaleMetrics struct {
	transitions *prometheus.CounterVec
	committed   prometheus.Counter
	aborted     *prometheus.CounterVec
	retries     prometheus.Counter

	duration prometheus.Histogram

	revenue   prometheus.Counter
	unitsSold prometheus.Counter

	stockAdjustments prometheus.Counter
	outboxEvents     prometheus.Counter

	inFlight prometheus.Gauge
}

// NewSaleMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewSaleMetrics() *SaleMetrics {
	return NewSaleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSaleMetricsWithRegisterer нужен тестам с изолированным реестром.
func NewSaleMetricsWithRegisterer(registerer prometheus.Registerer) *SaleMetrics {
	return &SaleMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_sale_state_transitions_total",
			Help: "Total number of sale committer state transitions",
		}, []string{"from", "to"}),
		committed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sale_committed_total",
			Help: "Total number of committed sales",
		}),
		aborted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_sale_aborted_total",
			Help: "Total number of aborted sales by reason",
		}, []string{"reason"}),
		retries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sale_retries_total",
			Help: "Total number of caller-level sale retries after store conflicts",
		}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_sale_duration_seconds",
			Help:    "Duration of sale finalization in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		revenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sale_revenue_total",
			Help: "Sum of committed invoice totals",
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sale_units_total",
			Help: "Total number of units sold",
		}),
		stockAdjustments: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_stock_adjustments_total",
			Help: "Total number of manual stock adjustments",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_outbox_events_enqueued_total",
			Help: "Total number of outbox events enqueued by sales and adjustments",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_sale_in_flight",
			Help: "Number of sales currently being finalized",
		}),
	}
}

// RecordTransition фиксирует переход конечного автомата продажи.
func (m *SaleMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordCommitted учитывает зафиксированную продажу.
func (m *SaleMetrics) RecordCommitted(total float64, units int64) {
	m.committed.Inc()
	m.revenue.Add(total)
	m.unitsSold.Add(float64(units))
}

// RecordAborted учитывает прерванную продажу.
func (m *SaleMetrics) RecordAborted(reason string) {
	m.aborted.WithLabelValues(reason).Inc()
}

// RecordRetry учитывает повтор продажи вызывающей стороной.
func (m *SaleMetrics) RecordRetry() {
	m.retries.Inc()
}

// RecordDuration записывает длительность одной попытки.
func (m *SaleMetrics) RecordDuration(duration time.Duration) {
	m.duration.Observe(duration.Seconds())
}

// RecordStockAdjustment учитывает ручную корректировку остатка.
func (m *SaleMetrics) RecordStockAdjustment() {
	m.stockAdjustments.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SaleMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// InFlightStarted увеличивает количество активных продаж.
func (m *SaleMetrics) InFlightStarted() {
	m.inFlight.Inc()
}

// InFlightFinished уменьшает количество активных продаж.
func (m *SaleMetrics) InFlightFinished() {
	m.inFlight.Dec()
}
