// Package outbox доставляет события продаж и движений склада из таблицы
// outbox в брокер. Запись в outbox происходит в транзакции продажи, поэтому
// событие не теряется, даже если брокер недоступен в момент оформления чека.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// Результаты попыток для pos_outbox_publish_attempts_total.
const (
	resultSent      = "sent"
	resultRetry     = "retry_error"
	resultFailed    = "failed"
	resultDLQFailed = "dlq_failed"
)

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher включает пересылку в DLQ событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

func WithBatchSize(batchSize int) Option {
	return func(w *Worker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
	}
}

// WithRetryBaseDelay задаёт первую паузу между попытками; далее она удваивается.
// Ноль отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.retryBaseDelay = max(delay, 0) }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// Worker периодически вычитывает pending-записи outbox и публикует их.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	metrics   *metrics.OutboxMetrics
	logger    *log.Entry

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
}

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewOutboxMetrics()
	}
	return w
}

// Run опрашивает outbox раз в pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: repository or publisher missing")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну пачку pending-событий и возвращает число
// успешно отмеченных как отправленные.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	w.observeBacklog(ctx)
	defer w.observeBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("pull pending outbox messages")
		return 0
	}

	var sent int
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, msg) {
			sent++
		}
	}
	return sent
}

// deliver публикует сообщение с повторами. Исчерпав попытки, пересылает его
// в DLQ и помечает failed. Отмена ctx оставляет сообщение в pending.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) bool {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":    msg.ID,
		"event_type":   msg.EventType,
		"aggregate_id": msg.AggregateID,
	})

	if err := w.publishWithRetry(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		entry.WithError(err).Error("outbox message exhausted publish attempts")
		w.metrics.RecordAttempt(resultFailed)

		if err := w.deadLetter(msg, err); err != nil {
			entry.WithError(err).Warn("dead-letter outbox message")
			w.metrics.RecordAttempt(resultDLQFailed)
		}
		if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
			entry.WithError(err).Warn("mark outbox message failed")
		}
		return false
	}

	if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
		entry.WithError(err).Warn("mark outbox message sent")
		return false
	}
	return true
}

func (w *Worker) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.publisher.Publish(msg); err == nil {
			w.metrics.RecordAttempt(resultSent)
			return nil
		}
		w.metrics.RecordAttempt(resultRetry)

		if attempt == w.maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", domain.ErrOutboxPublish, attempt, err)
		}

		if delay := w.retryBackoff(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// retryBackoff возвращает паузу перед попыткой attempt+1: base * 2^(attempt-1),
// не больше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// deadLetter заворачивает исходное сообщение в kafka.OutboxDeadLetter
// с причиной отказа, сохраняя его идентичность.
func (w *Worker) deadLetter(msg domain.OutboxMessage, cause error) error {
	if w.dlq == nil {
		return nil
	}

	payload, err := json.Marshal(kafka.NewOutboxDeadLetter(msg, cause, w.now()))
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	letter := msg
	letter.Payload = payload
	if err := w.dlq.Publish(letter); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}
