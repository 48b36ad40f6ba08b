// Команда dlq-reprocess переотправляет сообщения из DLQ обратно в рабочие
// топики. По умолчанию работает в режиме dry-run и только логирует кандидатов.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(os.Args[1:])
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"mode":         cfg.mode(),
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	deps, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	r := &replayer{cfg: cfg, replayDeps: deps}
	return r.run(ctx)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
