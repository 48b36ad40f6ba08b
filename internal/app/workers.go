package app

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/alerts"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
)

// background — фоновые воркеры с общим временем жизни.
type background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBackground(parent context.Context) *background {
	ctx, cancel := context.WithCancel(parent)
	return &background{ctx: ctx, cancel: cancel}
}

func (b *background) spawn(run func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		run(b.ctx)
	}()
}

// stop отменяет контекст воркеров и ждёт их выхода.
func (b *background) stop() {
	b.cancel()
	b.wg.Wait()
}

// startOutboxRelay запускает доставку outbox в Kafka. Без producer сообщения
// остаются в хранилище, а backlog-проверка не регистрируется.
func startOutboxRelay(bg *background, cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, monitor *healthcheck.Monitor, logger *log.Entry) {
	if producer == nil {
		logger.Warn("kafka is disabled, outbox messages stay pending in storage")
		return
	}

	worker := outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.OutboxTopic),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.OutboxDLQTopic)),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	bg.spawn(worker.Run)
	monitor.Add("outbox", healthcheck.NewOutboxBacklogChecker(repo, cfg.OutboxMaxPending))
}

func startIdempotencyCleanup(bg *background, cfg Config, repo domain.IdempotencyRepository, logger *log.Entry) {
	worker := idempotency.NewCleanupWorker(repo,
		idempotency.WithMetrics(metrics.NewCleanupMetrics()),
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	bg.spawn(worker.Run)
}

// startAlertConsumer подписывает обработчик низких остатков на события счетов.
// Отключённые алерты или отсутствие Kafka дают (nil, nil).
func startAlertConsumer(ctx context.Context, cfg Config, products domain.ProductRepository, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	if dlq == nil || !cfg.AlertsEnabled {
		return nil, nil
	}

	handler, err := alerts.NewHandler(products,
		alerts.WithMetrics(metrics.NewAlertMetrics()),
		alerts.WithLogger(logger.WithField("layer", "alerts")),
	)
	if err != nil {
		return nil, err
	}

	consumer, err := initAlertConsumer(cfg, handler.Handle, dlq, logger)
	if err != nil || consumer == nil {
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, err
	}
	return consumer, nil
}
