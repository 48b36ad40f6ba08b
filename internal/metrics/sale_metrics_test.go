package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestSaleMetricsRecordCommitted(t *testing.T) {
	m := NewSaleMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCommitted(517.5, 3)
	m.RecordCommitted(100, 1)

	if got := counterValue(t, m.committed); got != 2 {
		t.Fatalf("expected committed=2, got %v", got)
	}
	if got := counterValue(t, m.revenue); got != 617.5 {
		t.Fatalf("expected revenue=617.5, got %v", got)
	}
	if got := counterValue(t, m.unitsSold); got != 4 {
		t.Fatalf("expected units=4, got %v", got)
	}
}

func TestSaleMetricsTransitionsAndAborts(t *testing.T) {
	m := NewSaleMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordTransition("idle", "validating")
	m.RecordTransition("idle", "validating")
	m.RecordTransition("validating", "aborted")
	m.RecordAborted(AbortReasonInsufficientStock)

	if got := counterValue(t, m.transitions.WithLabelValues("idle", "validating")); got != 2 {
		t.Fatalf("expected 2 idle->validating transitions, got %v", got)
	}
	if got := counterValue(t, m.aborted.WithLabelValues(AbortReasonInsufficientStock)); got != 1 {
		t.Fatalf("expected 1 insufficient stock abort, got %v", got)
	}
}

func TestSaleMetricsInFlightAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSaleMetricsWithRegisterer(reg)

	m.InFlightStarted()
	m.InFlightStarted()
	m.InFlightFinished()
	m.RecordDuration(25 * time.Millisecond)

	var gauge dto.Metric
	if err := m.inFlight.Write(&gauge); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if got := gauge.GetGauge().GetValue(); got != 1 {
		t.Fatalf("expected in-flight=1, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "pos_sale_duration_seconds" {
			found = true
			if count := family.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Fatalf("expected 1 duration sample, got %d", count)
			}
		}
	}
	if !found {
		t.Fatal("duration histogram not gathered")
	}
}

func TestRegisterReusesExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewSaleMetricsWithRegisterer(reg)
	second := NewSaleMetricsWithRegisterer(reg)

	first.RecordStockAdjustment()
	second.RecordStockAdjustment()

	if got := counterValue(t, first.stockAdjustments); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRegisterPanicsOnTypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	registerCounter(reg, prometheus.CounterOpts{Name: "pos_conflicting_metric", Help: "conflict"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on type mismatch")
		}
	}()
	registerHistogram(reg, prometheus.HistogramOpts{Name: "pos_conflicting_metric", Help: "conflict"})
}
