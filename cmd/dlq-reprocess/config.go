package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

const (
	envKafkaBrokers = "POS_KAFKA_BROKERS"

	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) mode() string {
	if c.execute {
		return "execute"
	}
	return "dry-run"
}

func (c config) validate() error {
	switch {
	case len(c.brokers) == 0:
		return fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(c.sourceTopic) == "":
		return errors.New("source-topic is required")
	case strings.TrimSpace(c.targetTopic) == "":
		return errors.New("target-topic is required")
	case c.limit <= 0:
		return errors.New("limit must be > 0")
	case c.idleTimeout <= 0:
		return errors.New("idle-timeout must be > 0")
	}
	return nil
}

// readConfig разбирает аргументы командной строки. Брокеры без флага берутся из POS_KAFKA_BROKERS.
func readConfig(args []string) (config, error) {
	var (
		cfg     config
		brokers string
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (default $"+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "topic to read dead letters from")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicInvoiceEvents, "topic for replayed outbox events")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "maximum messages to scan across all partitions")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replayed messages instead of logging them")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the newest messages of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this much silence")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers = os.Getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokers)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(part); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
