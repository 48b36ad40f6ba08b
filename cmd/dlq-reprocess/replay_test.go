package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func replayConfig() config {
	return config{sourceTopic: dlqTopic, targetTopic: eventsTopic, limit: 10, idleTimeout: 20 * time.Millisecond}
}

func TestReplayer_DryRunOnlyCounts(t *testing.T) {
	topic := newFakeTopic().append(0,
		consumerLetter(t, "inv-1", `{"id":"evt-1"}`),
		[]byte(`{"foo":"bar"}`),
	)

	stats, err := replayerFor(replayConfig(), topic, nil).partition(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, replayStats{scanned: 2, replayed: 1, skipped: 1}, stats)
	require.Equal(t, []opened{{partition: 0, offset: 0}}, topic.opened)
}

func TestReplayer_ExecutePublishes(t *testing.T) {
	topic := newFakeTopic().append(0,
		outboxLetter(t, invoiceOutbox("outbox-2", "inv-8")),
		consumerLetter(t, "inv-9", `{"id":"evt-9"}`),
	)
	producer := &fakeProducer{}
	cfg := replayConfig()
	cfg.execute = true

	stats, err := replayerFor(cfg, topic, producer).partition(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, stats.replayed)
	require.Equal(t, []string{"inv-8", "inv-9"}, producer.keys(t))
	for _, msg := range producer.sent {
		require.Equal(t, eventsTopic, msg.Topic)
	}
}

func TestReplayer_FromNewestReadsTail(t *testing.T) {
	topic := newFakeTopic()
	for i := 0; i < 10; i++ {
		topic.append(0, consumerLetter(t, "inv", `{}`))
	}
	cfg := replayConfig()
	cfg.fromNewest = true

	stats, err := replayerFor(cfg, topic, nil).partition(context.Background(), 0, 3)
	require.NoError(t, err)
	require.Equal(t, 3, stats.scanned)
	require.Equal(t, int64(7), topic.opened[0].offset)
}

func TestReplayer_EmptyPartitionIsNotOpened(t *testing.T) {
	topic := newFakeTopic()
	topic.oldest[0] = 4

	stats, err := replayerFor(replayConfig(), topic, nil).partition(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Zero(t, stats.scanned)
	require.Empty(t, topic.opened)
}

func TestReplayer_PartitionFailures(t *testing.T) {
	cfg := replayConfig()
	cfg.execute = true
	letter := consumerLetter(t, "inv-1", `{"id":"evt-1"}`)

	t.Run("offsets", func(t *testing.T) {
		topic := newFakeTopic().append(0, letter)
		topic.offsetErr = errBroker
		_, err := replayerFor(cfg, topic, &fakeProducer{}).partition(context.Background(), 0, 1)
		require.ErrorIs(t, err, errBroker)
	})

	t.Run("consume", func(t *testing.T) {
		topic := newFakeTopic().append(0, letter)
		topic.consumeErr = errBroker
		_, err := replayerFor(cfg, topic, &fakeProducer{}).partition(context.Background(), 0, 1)
		require.ErrorContains(t, err, "consume partition 0")
	})

	t.Run("consumer error", func(t *testing.T) {
		stream := openStream(1)
		stream.errs <- &sarama.ConsumerError{Err: errors.New("consumer boom")}
		topic := newFakeTopic()
		topic.streams[0] = stream

		_, err := replayerFor(cfg, topic, &fakeProducer{}).partition(context.Background(), 0, 1)
		require.ErrorContains(t, err, "consumer error")
	})

	t.Run("publish", func(t *testing.T) {
		topic := newFakeTopic().append(0, letter)
		_, err := replayerFor(cfg, topic, &fakeProducer{fail: errBroker}).partition(context.Background(), 0, 1)
		require.ErrorContains(t, err, "publish replay message")
	})
}

func TestReplayer_MalformedLetterIsSkipped(t *testing.T) {
	topic := newFakeTopic().append(0, []byte(`{"id":"x","payload":"not-an-object"}`))

	stats, err := replayerFor(replayConfig(), topic, nil).partition(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, replayStats{scanned: 1, skipped: 1}, stats)
}

func TestReplayer_StopsWhenIdleOrCancelled(t *testing.T) {
	topic := newFakeTopic()
	topic.streams[0] = openStream(0)

	stats, err := replayerFor(replayConfig(), topic, nil).partition(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Zero(t, stats.scanned)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := replayConfig()
	cfg.idleTimeout = time.Minute
	_, err = replayerFor(cfg, topic, nil).partition(ctx, 0, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReplayer_RunHonoursGlobalLimit(t *testing.T) {
	topic := newFakeTopic().
		append(2, consumerLetter(t, "inv-2", `{"id":"evt-2"}`)).
		append(0, consumerLetter(t, "inv-0", `{"id":"evt-0"}`))
	producer := &fakeProducer{}
	cfg := replayConfig()
	cfg.limit = 1
	cfg.execute = true

	require.NoError(t, replayerFor(cfg, topic, producer).run(context.Background()))
	require.Equal(t, []opened{{partition: 0, offset: 0}}, topic.opened, "partitions are read in order until the limit")
	require.Equal(t, []string{"inv-0"}, producer.keys(t))
}

func TestReplayer_RunPreconditions(t *testing.T) {
	cfg := replayConfig()
	require.ErrorContains(t, (&replayer{cfg: cfg}).run(context.Background()), "client and consumer are required")

	cfg.execute = true
	require.ErrorContains(t, replayerFor(cfg, newFakeTopic(), nil).run(context.Background()), "producer is required")

	require.NoError(t, replayerFor(replayConfig(), newFakeTopic(), nil).run(context.Background()), "no partitions is not an error")

	broken := newFakeTopic()
	broken.metadataErr = errBroker
	require.ErrorContains(t, replayerFor(replayConfig(), broken, nil).run(context.Background()), "get partitions")
}

func TestRun_ClosesDependencies(t *testing.T) {
	restore := newReplayDependencies
	t.Cleanup(func() { newReplayDependencies = restore })

	newReplayDependencies = func(config) (replayDeps, error) { return replayDeps{}, errBroker }
	require.ErrorIs(t, run(context.Background(), replayConfig()), errBroker)

	topic := newFakeTopic().append(0, consumerLetter(t, "inv-1", `{"id":"evt-1"}`))
	producer := &fakeProducer{}
	newReplayDependencies = func(config) (replayDeps, error) {
		return replayDeps{client: topic, consumer: topic, producer: producer}, nil
	}

	cfg := replayConfig()
	cfg.execute = true
	require.NoError(t, run(context.Background(), cfg))
	require.Equal(t, 2, topic.closes)
	require.True(t, producer.closed)
	require.Len(t, producer.sent, 1)
}
