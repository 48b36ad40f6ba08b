package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// DeadLetter — сообщение, которое consumer не смог обработать.
type DeadLetter struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

func NewDeadLetter(msg *sarama.ConsumerMessage, cause error, attempts int, at time.Time) DeadLetter {
	letter := DeadLetter{
		OriginalTopic:     msg.Topic,
		OriginalPartition: msg.Partition,
		OriginalOffset:    msg.Offset,
		OriginalKey:       string(msg.Key),
		OriginalValue:     string(msg.Value),
		FailedAt:          at.UTC().Format(time.RFC3339),
		RetryCount:        attempts,
	}
	if cause != nil {
		letter.ErrorMessage = cause.Error()
	}
	return letter
}

// OutboxDeadLetter — payload конверта, который outbox worker кладёт в DLQ,
// когда публикация исчерпала попытки. Исходное событие лежит в Payload без изменений.
type OutboxDeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func NewOutboxDeadLetter(message domain.OutboxMessage, publishErr error, at time.Time) OutboxDeadLetter {
	letter := OutboxDeadLetter{
		OutboxID:       message.ID,
		AggregateType:  message.AggregateType,
		AggregateID:    message.AggregateID,
		EventType:      message.EventType,
		Payload:        json.RawMessage(message.Payload),
		DLQPublishedAt: at.UTC(),
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}
	return letter
}
