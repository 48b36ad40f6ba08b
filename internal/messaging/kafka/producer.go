package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Header — заголовок Kafka-сообщения.
type Header struct {
	Key   string
	Value string
}

// Producer отправляет JSON-события POS через синхронный sarama producer.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// NewProducerConfig возвращает настройки идемпотентного producer'а: acks=all,
// одна in-flight пачка на соединение.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewProducer(brokers []string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFromSync(sp), nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer, например mocks.SyncProducer.
func NewProducerFromSync(sp sarama.SyncProducer) *Producer {
	return &Producer{
		sync:   sp,
		logger: log.WithField("component", "kafka-producer"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send кодирует event в JSON и синхронно отправляет в topic.
func (p *Producer) Send(topic, key string, event any, headers ...Header) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: p.now(),
	}
	for _, h := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(h.Key), Value: []byte(h.Value)})
	}

	entry := p.logger.WithFields(log.Fields{"topic": topic, "key": key})
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		entry.WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
