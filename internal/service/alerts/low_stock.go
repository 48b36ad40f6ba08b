package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// LowStockAlert — сигнал, что остаток товара опустился до порога.
type LowStockAlert struct {
	ProductID string
	Name      string
	Stock     int64
	MinStock  int64
	// EventType и Reference указывают на событие, после которого сработал сигнал.
	EventType string
	Reference string
}

// Notifier доставляет сигнал дальше (лог, мессенджер, почта).
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockAlert) error
}

// LogNotifier пишет сигнал в лог предупреждением.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт LogNotifier; nil logger означает компонентный логгер по умолчанию.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "low-stock-alerts")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyLowStock(_ context.Context, alert LowStockAlert) error {
	n.logger.WithFields(log.Fields{
		"product_id": alert.ProductID,
		"name":       alert.Name,
		"stock":      alert.Stock,
		"min_stock":  alert.MinStock,
		"event_type": alert.EventType,
		"reference":  alert.Reference,
	}).Warn("product stock is low")
	return nil
}

// Option настраивает Handler.
type Option func(*Handler)

// WithNotifier задаёт получателя сигналов.
func WithNotifier(notifier Notifier) Option {
	return func(h *Handler) {
		if notifier != nil {
			h.notifier = notifier
		}
	}
}

// WithMetrics задаёт метрики обработчика.
func WithMetrics(m *metrics.AlertMetrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithLogger задаёт логгер обработчика.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler читает события продаж и корректировок из Kafka и поднимает сигнал,
// если после события остаток товара не выше MinStock.
type Handler struct {
	products domain.ProductRepository
	notifier Notifier
	metrics  *metrics.AlertMetrics
	logger   *log.Entry
}

// NewHandler создаёт обработчик поверх репозитория товаров.
func NewHandler(products domain.ProductRepository, opts ...Option) (*Handler, error) {
	if products == nil {
		return nil, errors.New("product repository is required")
	}
	h := &Handler{
		products: products,
		logger:   log.WithField("component", "low-stock-alerts"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.notifier == nil {
		h.notifier = NewLogNotifier(h.logger)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewAlertMetrics()
	}
	return h, nil
}

// Handle соответствует kafka.MessageHandler. Неразборчивое сообщение возвращает ошибку
// и после повторов уходит в DLQ; событие незнакомого типа пропускается.
func (h *Handler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		return err
	}

	var (
		productIDs []string
		reference  string
	)
	switch kafka.EventType(envelope.EventType) {
	case kafka.EventTypeInvoiceCreated:
		event, err := kafka.ParseInvoiceCreated(envelope)
		if err != nil {
			return err
		}
		reference = event.InvoiceID
		seen := make(map[string]struct{}, len(event.Items))
		for _, item := range event.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			productIDs = append(productIDs, item.ProductID)
		}
	case kafka.EventTypeStockAdjusted:
		event, err := kafka.ParseStockAdjusted(envelope)
		if err != nil {
			return err
		}
		reference = event.Reference
		productIDs = []string{event.ProductID}
	default:
		h.metrics.RecordSkipped()
		h.logger.WithField("event_type", envelope.EventType).Debug("skipping event")
		return nil
	}
	h.metrics.RecordEvent(envelope.EventType)

	for _, id := range productIDs {
		product, err := h.products.Get(ctx, id)
		if errors.Is(err, domain.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load product %s: %w", id, err)
		}
		if !product.LowStock() {
			continue
		}

		alert := LowStockAlert{
			ProductID: product.ID,
			Name:      product.Name,
			Stock:     product.Stock,
			MinStock:  product.MinStockOrZero(),
			EventType: envelope.EventType,
			Reference: reference,
		}
		if err := h.notifier.NotifyLowStock(ctx, alert); err != nil {
			return fmt.Errorf("notify low stock %s: %w", id, err)
		}
		h.metrics.RecordLowStock()
	}
	return nil
}
