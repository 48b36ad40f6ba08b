package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type recordingNotifier struct {
	alerts []LowStockAlert
	err    error
}

func (n *recordingNotifier) NotifyLowStock(_ context.Context, alert LowStockAlert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func setup(t *testing.T) (*Handler, *recordingNotifier, *prometheus.Registry, domain.ProductRepository) {
	t.Helper()

	store := memory.NewStore()
	products := memory.NewProductRepository(store)
	ctx := context.Background()
	require.NoError(t, products.Create(ctx, domain.Product{ID: "p-low", Name: "Bujía", SalePrice: decimal.NewFromInt(10), Stock: 2, MinStock: int64Ptr(3)}))
	require.NoError(t, products.Create(ctx, domain.Product{ID: "p-ok", Name: "Filtro", SalePrice: decimal.NewFromInt(10), Stock: 20, MinStock: int64Ptr(3)}))
	require.NoError(t, products.Create(ctx, domain.Product{ID: "p-empty", Name: "Correa", SalePrice: decimal.NewFromInt(10)}))

	notifier := &recordingNotifier{}
	reg := prometheus.NewRegistry()
	h, err := NewHandler(products, WithNotifier(notifier), WithMetrics(metrics.NewAlertMetricsWithRegisterer(reg)))
	require.NoError(t, err)
	return h, notifier, reg, products
}

func message(t *testing.T, eventType kafka.EventType, payload any) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(kafka.Envelope{
		ID:          "msg-1",
		EventType:   string(eventType),
		Payload:     raw,
		PublishedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: kafka.TopicInvoiceEvents, Value: value}
}

func TestHandle_InvoiceCreatedRaisesAlertPerLowProduct(t *testing.T) {
	h, notifier, m, _ := setup(t)

	event := kafka.InvoiceCreatedEvent{
		EventType: kafka.EventTypeInvoiceCreated,
		InvoiceID: "inv-1",
		Items: []kafka.InvoiceLine{
			{ProductID: "p-low", Quantity: 1},
			{ProductID: "p-ok", Quantity: 1},
			{ProductID: "p-low", Quantity: 2},
			{ProductID: "p-empty", Quantity: 1},
			{ProductID: "p-deleted", Quantity: 1},
		},
	}
	require.NoError(t, h.Handle(context.Background(), message(t, kafka.EventTypeInvoiceCreated, event)))

	require.Len(t, notifier.alerts, 2)
	require.Equal(t, "p-low", notifier.alerts[0].ProductID)
	require.EqualValues(t, 3, notifier.alerts[0].MinStock)
	require.Equal(t, "inv-1", notifier.alerts[0].Reference)
	require.Equal(t, "p-empty", notifier.alerts[1].ProductID)
	require.EqualValues(t, 0, notifier.alerts[1].MinStock)
	require.Equal(t, 2.0, counterValue(t, m, "pos_low_stock_alerts_total"))
}

func TestHandle_StockAdjusted(t *testing.T) {
	h, notifier, _, _ := setup(t)

	event := kafka.StockAdjustedEvent{EventType: kafka.EventTypeStockAdjusted, ProductID: "p-ok", Delta: -1, StockAfter: 20, Reference: "inventario"}
	require.NoError(t, h.Handle(context.Background(), message(t, kafka.EventTypeStockAdjusted, event)))
	require.Empty(t, notifier.alerts)

	event.ProductID = "p-low"
	require.NoError(t, h.Handle(context.Background(), message(t, kafka.EventTypeStockAdjusted, event)))
	require.Len(t, notifier.alerts, 1)
	require.Equal(t, string(kafka.EventTypeStockAdjusted), notifier.alerts[0].EventType)
}

func TestHandle_UnknownEventIsSkipped(t *testing.T) {
	h, notifier, m, _ := setup(t)

	require.NoError(t, h.Handle(context.Background(), message(t, "invoice.voided", map[string]string{"id": "x"})))
	require.Empty(t, notifier.alerts)
	require.Equal(t, 1.0, counterValue(t, m, "pos_alert_events_skipped_total"))
}

func TestHandle_Errors(t *testing.T) {
	h, notifier, _, _ := setup(t)

	err := h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})
	require.Error(t, err)

	notifier.err = errors.New("smtp down")
	event := kafka.StockAdjustedEvent{EventType: kafka.EventTypeStockAdjusted, ProductID: "p-low"}
	err = h.Handle(context.Background(), message(t, kafka.EventTypeStockAdjusted, event))
	require.ErrorContains(t, err, "smtp down")
}

func TestNewHandler_RequiresRepository(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}
