package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultConsumerAttempts   = 3
	defaultConsumerRetryDelay = 200 * time.Millisecond
)

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerConfig описывает подписку consumer group.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// MaxAttempts включает попытки, уже сделанные до нас (заголовок x-retry-count).
	MaxAttempts int
	RetryDelay  time.Duration
	// DeadLetters получает сообщения, исчерпавшие попытки. nil оставляет их
	// незакоммиченными.
	DeadLetters *Producer
}

// Consumer читает топики в составе consumer group. Offset фиксируется только
// после успешной обработки или переноса в DLQ.
type Consumer struct {
	group       sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	deadLetters *Producer
	maxAttempts int
	retryDelay  time.Duration
	logger      *log.Entry
	now         func() time.Time

	wg sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", cfg.GroupID, err)
	}
	return newConsumer(group, cfg, handler), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler MessageHandler) *Consumer {
	c := &Consumer{
		group:       group,
		topics:      cfg.Topics,
		handler:     handler,
		deadLetters: cfg.DeadLetters,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      log.WithFields(log.Fields{"component": "kafka-consumer", "group_id": cfg.GroupID}),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultConsumerAttempts
	}
	if c.retryDelay < 0 {
		c.retryDelay = defaultConsumerRetryDelay
	}
	return c
}

// Start читает группу в фоне до отмены ctx. Stop закрывает группу и ждёт горутины.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		// Consume возвращается на каждом rebalance.
		for ctx.Err() == nil {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consume group session")
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer group error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close consumer group: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			if err := c.process(ctx, msg); err != nil {
				c.logger.WithError(err).WithFields(messageFields(msg)).Error("message left uncommitted")
				continue
			}
			session.MarkMessage(msg, "")
		}
	}
}

// process вызывает handler с паузами retryDelay, пока общее число попыток
// не достигнет maxAttempts, и затем переносит сообщение в DLQ.
func (c *Consumer) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempt := retryCount(msg)
	for {
		err := c.handler(ctx, msg)
		if err == nil {
			return nil
		}

		attempt++
		if attempt >= c.maxAttempts {
			return c.deadLetter(msg, err, attempt)
		}

		c.logger.WithError(err).WithFields(messageFields(msg)).
			WithField("attempt", attempt).Warn("message handler failed, retrying")

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) deadLetter(msg *sarama.ConsumerMessage, cause error, attempts int) error {
	if c.deadLetters == nil {
		return cause
	}

	letter := NewDeadLetter(msg, cause, attempts, c.now())
	err := c.deadLetters.Send(TopicDeadLetterQueue, string(msg.Key), letter,
		Header{HeaderRetryCount, strconv.Itoa(attempts)},
		Header{HeaderOriginalTopic, msg.Topic},
		Header{HeaderErrorMessage, letter.ErrorMessage},
		Header{HeaderFailedAt, letter.FailedAt},
	)
	if err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}

	c.logger.WithFields(messageFields(msg)).WithField("attempts", attempts).Info("message moved to dlq")
	return nil
}

// retryCount читает x-retry-count; отсутствующий или нечисловой заголовок даёт 0.
func retryCount(msg *sarama.ConsumerMessage) int {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == HeaderRetryCount {
			n, err := strconv.Atoi(string(h.Value))
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

func messageFields(msg *sarama.ConsumerMessage) log.Fields {
	return log.Fields{"topic": msg.Topic, "partition": msg.Partition, "offset": msg.Offset}
}
