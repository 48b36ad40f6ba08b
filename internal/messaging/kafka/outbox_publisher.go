package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// Envelope — формат сообщения, в котором outbox-записи уходят в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Key возвращает ключ партиционирования: агрегат, а при его отсутствии ID сообщения.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// NewEnvelope упаковывает outbox-сообщение.
func NewEnvelope(message domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            message.ID,
		AggregateType: message.AggregateType,
		AggregateID:   message.AggregateID,
		EventType:     message.EventType,
		Payload:       json.RawMessage(message.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт паблишер; пустой topic означает TopicInvoiceEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicInvoiceEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Topic возвращает topic, в который уходят сообщения.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	envelope := NewEnvelope(event, p.now())
	return p.producer.Send(p.topic, envelope.Key(), envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
