package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// replayDeps — подключения к Kafka на время одного прогона. producer
// создаётся только в режиме execute.
type replayDeps struct {
	client   offsetClient
	consumer partitionConsumerSource
	producer replayProducer
}

func (d replayDeps) Close() {
	for _, c := range []interface{ Close() error }{d.producer, d.consumer, d.client} {
		if c != nil {
			_ = c.Close()
		}
	}
}

// consumerSource приводит sarama.Consumer к partitionConsumerSource.
type consumerSource struct {
	sarama.Consumer
}

func (s consumerSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.Consumer.ConsumePartition(topic, partition, offset)
}

var newReplayDependencies = func(cfg config) (replayDeps, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, saramaCfg)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := replayDeps{client: client, consumer: consumerSource{consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producer, err := sarama.NewSyncProducer(cfg.brokers, kafka.NewProducerConfig())
	if err != nil {
		deps.Close()
		return replayDeps{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}

// replayStats считает результат прогона. scanned включает пропущенные сообщения.
type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

type replayer struct {
	cfg config
	replayDeps
	now func() time.Time
}

// run обходит партиции source-топика по возрастанию номера, пока не
// исчерпан общий limit.
func (r *replayer) run(ctx context.Context) error {
	if r.client == nil || r.consumer == nil {
		return errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.producer == nil {
		return errors.New("producer is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", r.cfg.sourceTopic).Warn("source topic has no partitions")
		return nil
	}
	slices.Sort(partitions)

	var total replayStats
	for _, partition := range partitions {
		left := r.cfg.limit - total.scanned
		if left <= 0 {
			break
		}
		stats, err := r.partition(ctx, partition, left)
		total.add(stats)
		if err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"mode":     r.cfg.mode(),
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")
	return nil
}

// window возвращает диапазон офсетов [start, end) для чтения партиции.
func (r *replayer) window(partition int32, limit int) (start, end int64, err error) {
	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	end, err = r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start = oldest
	if r.cfg.fromNewest {
		start = max(end-int64(limit), oldest)
	}
	return start, end, nil
}

// partition читает не больше limit сообщений из одной партиции. Чтение
// заканчивается на офсете, который был последним при старте, или после
// idleTimeout без новых сообщений.
func (r *replayer) partition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	start, end, err := r.window(partition, limit)
	if err != nil || end <= start {
		return stats, err
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	errs := pc.Errors()
	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			stats.scanned++
			if err := r.handle(msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func (r *replayer) handle(msg *sarama.ConsumerMessage, stats *replayStats) error {
	entry := log.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, ok, err := extractReplayMessage(msg, r.cfg.targetTopic)
	if err != nil {
		entry.WithError(err).Warn("skip unsupported dlq message")
	}
	if !ok {
		stats.skipped++
		return nil
	}

	if r.cfg.execute {
		if err := publishReplay(r.producer, replay, r.clock()); err != nil {
			return fmt.Errorf("publish replay message: %w", err)
		}
	} else {
		entry.WithFields(log.Fields{"target_topic": replay.topic, "key": replay.key}).Info("dlq replay candidate")
	}
	stats.replayed++
	return nil
}

func (r *replayer) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

func publishReplay(producer replayProducer, msg replayMessage, at time.Time) error {
	if producer == nil {
		return errors.New("producer is nil")
	}
	_, _, err := producer.SendMessage(msg.producerMessage(at))
	return err
}
