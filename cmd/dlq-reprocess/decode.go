package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

// replayMessage — сообщение, готовое к повторной публикации.
type replayMessage struct {
	topic string
	key   string
	value []byte
}

func (m replayMessage) producerMessage(at time.Time) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic:     m.topic,
		Key:       sarama.StringEncoder(m.key),
		Value:     sarama.ByteEncoder(m.value),
		Timestamp: at,
	}
}

// extractReplayMessage восстанавливает исходное сообщение из записи DLQ.
//
// Понимает два формата. kafka.DeadLetter пишет consumer: в нём есть исходные
// топик, ключ и значение. Outbox worker пишет kafka.Envelope с
// kafka.OutboxDeadLetter в payload: из него собирается свежий конверт для
// defaultTopic. Всё остальное пропускается без ошибки (ok == false).
func extractReplayMessage(msg *sarama.ConsumerMessage, defaultTopic string) (replayMessage, bool, error) {
	if m, ok := fromConsumerLetter(msg.Value, defaultTopic); ok {
		return m, true, nil
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}
	m, err := fromOutboxLetter(envelope, defaultTopic)
	if err != nil {
		return replayMessage{}, false, err
	}
	return m, true, nil
}

func fromConsumerLetter(raw []byte, defaultTopic string) (replayMessage, bool) {
	var letter kafka.DeadLetter
	if err := json.Unmarshal(raw, &letter); err != nil || letter.OriginalValue == "" {
		return replayMessage{}, false
	}
	return replayMessage{
		topic: firstNonEmpty(strings.TrimSpace(letter.OriginalTopic), defaultTopic),
		key:   letter.OriginalKey,
		value: []byte(letter.OriginalValue),
	}, true
}

func fromOutboxLetter(envelope kafka.Envelope, topic string) (replayMessage, error) {
	var letter kafka.OutboxDeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return replayMessage{}, fmt.Errorf("decode outbox dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return replayMessage{}, errors.New("outbox dead letter carries no original payload")
	}

	replay := kafka.Envelope{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       letter.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayMessage{topic: topic, key: replay.Key(), value: value}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
