package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

// fakeTopic — один топик в памяти: партиции со своими сообщениями.
// Реализует offsetClient и partitionConsumerSource.
type fakeTopic struct {
	logs        map[int32][]*sarama.ConsumerMessage
	oldest      map[int32]int64
	streams     map[int32]*fakeStream
	metadataErr error
	offsetErr   error
	consumeErr  error

	opened []opened
	closes int
}

type opened struct {
	partition int32
	offset    int64
}

func newFakeTopic() *fakeTopic {
	return &fakeTopic{
		logs:    map[int32][]*sarama.ConsumerMessage{},
		oldest:  map[int32]int64{},
		streams: map[int32]*fakeStream{},
	}
}

// append дописывает сообщения в партицию с последовательными офсетами.
func (f *fakeTopic) append(partition int32, values ...[]byte) *fakeTopic {
	next := f.oldest[partition] + int64(len(f.logs[partition]))
	for _, value := range values {
		f.logs[partition] = append(f.logs[partition], &sarama.ConsumerMessage{Partition: partition, Offset: next, Value: value})
		next++
	}
	return f
}

func (f *fakeTopic) Partitions(string) ([]int32, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	var ids []int32
	for id := range f.logs {
		ids = append(ids, id)
	}
	for id := range f.streams {
		if _, ok := f.logs[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTopic) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if f.offsetErr != nil {
		return 0, f.offsetErr
	}
	switch marker {
	case sarama.OffsetOldest:
		return f.oldest[partition], nil
	case sarama.OffsetNewest:
		if _, ok := f.streams[partition]; ok {
			return f.oldest[partition] + 1, nil
		}
		return f.oldest[partition] + int64(len(f.logs[partition])), nil
	}
	return 0, fmt.Errorf("marker %d", marker)
}

func (f *fakeTopic) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	f.opened = append(f.opened, opened{partition: partition, offset: offset})
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	if stream, ok := f.streams[partition]; ok {
		return stream, nil
	}

	var tail []*sarama.ConsumerMessage
	for _, msg := range f.logs[partition] {
		if msg.Offset >= offset {
			tail = append(tail, msg)
		}
	}
	return drained(tail), nil
}

// Close вызывается дважды: объект играет роль и клиента, и consumer.
func (f *fakeTopic) Close() error {
	f.closes++
	return nil
}

// fakeStream — партиция, каналы которой тест наполняет сам.
type fakeStream struct {
	messages chan *sarama.ConsumerMessage
	errs     chan *sarama.ConsumerError
}

func openStream(buffer int) *fakeStream {
	return &fakeStream{
		messages: make(chan *sarama.ConsumerMessage, buffer),
		errs:     make(chan *sarama.ConsumerError, buffer),
	}
}

func drained(msgs []*sarama.ConsumerMessage) *fakeStream {
	s := openStream(len(msgs))
	for _, msg := range msgs {
		s.messages <- msg
	}
	close(s.messages)
	close(s.errs)
	return s
}

func (s *fakeStream) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *fakeStream) Errors() <-chan *sarama.ConsumerError     { return s.errs }
func (s *fakeStream) Close() error                             { return nil }

type fakeProducer struct {
	fail   error
	sent   []*sarama.ProducerMessage
	closed bool
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if p.fail != nil {
		return 0, 0, p.fail
	}
	p.sent = append(p.sent, msg)
	return msg.Partition, int64(len(p.sent)), nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func (p *fakeProducer) keys(t *testing.T) []string {
	t.Helper()
	var keys []string
	for _, msg := range p.sent {
		raw, err := msg.Key.Encode()
		require.NoError(t, err)
		keys = append(keys, string(raw))
	}
	return keys
}

func replayerFor(cfg config, topic *fakeTopic, producer *fakeProducer) *replayer {
	deps := replayDeps{client: topic, consumer: topic}
	if producer != nil {
		deps.producer = producer
	}
	return &replayer{cfg: cfg, replayDeps: deps}
}

var errBroker = errors.New("broker unavailable")
