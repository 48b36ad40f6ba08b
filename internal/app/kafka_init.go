package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если список брокеров не пуст.
// Пустой список даёт (nil, nil): сервис работает без Kafka, outbox копится в хранилище.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initAlertConsumer подписывает обработчик остатков на события счетов.
func initAlertConsumer(cfg Config, handler kafka.MessageHandler, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	brokers := cfg.Brokers()
	if !cfg.AlertsEnabled || len(brokers) == 0 {
		return nil, nil
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     brokers,
		GroupID:     cfg.AlertsGroupID,
		Topics:      []string{cfg.OutboxTopic},
		MaxAttempts: cfg.AlertsRetries,
		DeadLetters: dlq,
	}, handler)
	if err != nil {
		logger.WithError(err).Warn("failed to create low-stock alert consumer")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"group_id": cfg.AlertsGroupID,
		"topic":    cfg.OutboxTopic,
	}).Info("low-stock alert consumer initialized")
	return consumer, nil
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
