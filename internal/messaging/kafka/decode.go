package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// ParseEnvelope разбирает outbox-конверт из сообщения.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return envelope, nil
}

func ParseInvoiceCreated(envelope Envelope) (*InvoiceCreatedEvent, error) {
	var event InvoiceCreatedEvent
	if err := decodePayload(envelope, EventTypeInvoiceCreated, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func ParseStockAdjusted(envelope Envelope) (*StockAdjustedEvent, error) {
	var event StockAdjustedEvent
	if err := decodePayload(envelope, EventTypeStockAdjusted, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func decodePayload(envelope Envelope, want EventType, dst any) error {
	if envelope.EventType != string(want) {
		return fmt.Errorf("unexpected event type %q, want %q", envelope.EventType, want)
	}
	if err := json.Unmarshal(envelope.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", want, err)
	}
	return nil
}
