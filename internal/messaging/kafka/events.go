package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeInvoiceCreated EventType = "invoice.created"
	EventTypeStockAdjusted  EventType = "stock.adjusted"
)

// Типы агрегатов в outbox.
const (
	AggregateInvoice = "invoice"
	AggregateProduct = "product"
)

// Topics для Kafka
const (
	TopicInvoiceEvents   = "pos.invoice.events"
	TopicDeadLetterQueue = "pos.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// InvoiceLine — позиция счёта в событии. Суммы передаются строками, чтобы не терять точность.
type InvoiceLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

// InvoiceCreatedEvent публикуется после фиксации продажи.
type InvoiceCreatedEvent struct {
	EventType    EventType     `json:"event_type"`
	InvoiceID    string        `json:"invoice_id"`
	Number       string        `json:"number"`
	Items        []InvoiceLine `json:"items"`
	Subtotal     string        `json:"subtotal"`
	Tax          string        `json:"tax"`
	Total        string        `json:"total"`
	CustomerID   string        `json:"customer_id,omitempty"`
	CustomerName string        `json:"customer_name"`
	CashierID    string        `json:"cashier_id,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// StockAdjustedEvent публикуется после ручной корректировки остатка.
type StockAdjustedEvent struct {
	EventType  EventType `json:"event_type"`
	ProductID  string    `json:"product_id"`
	Delta      int64     `json:"delta"`
	StockAfter int64     `json:"stock_after"`
	Reason     string    `json:"reason"`
	Reference  string    `json:"reference,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInvoiceCreatedEvent собирает событие из зафиксированного счёта.
func NewInvoiceCreatedEvent(invoice domain.Invoice) *InvoiceCreatedEvent {
	items := make([]InvoiceLine, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		items = append(items, InvoiceLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
		})
	}

	customerID, customerName := invoice.CustomerKey()
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}

	return &InvoiceCreatedEvent{
		EventType:    EventTypeInvoiceCreated,
		InvoiceID:    invoice.ID,
		Number:       invoice.Number,
		Items:        items,
		Subtotal:     invoice.Subtotal.StringFixed(domain.MoneyPlaces),
		Tax:          invoice.Tax.StringFixed(domain.MoneyPlaces),
		Total:        invoice.Total.StringFixed(domain.MoneyPlaces),
		CustomerID:   customerID,
		CustomerName: customerName,
		CashierID:    invoice.CashierID,
		Timestamp:    invoice.CreatedAt,
	}
}

// NewStockAdjustedEvent собирает событие из записи журнала остатков.
func NewStockAdjustedEvent(movement domain.StockMovement) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		EventType:  EventTypeStockAdjusted,
		ProductID:  movement.ProductID,
		Delta:      movement.Delta,
		StockAfter: movement.StockAfter,
		Reason:     string(movement.Reason),
		Reference:  movement.Reference,
		Timestamp:  movement.Occurred,
	}
}
