// Package idempotency обслуживает ключи идемпотентности FinalizeSale.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.CleanupMetrics) CleanupOption {
	return func(w *CleanupWorker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithInterval задает паузу между проходами. Неположительное значение игнорируется.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize ограничивает число ключей, удаляемых одним запросом.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

func WithClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// CleanupWorker периодически удаляет просроченные ключи идемпотентности,
// чтобы таблица не росла вместе с числом продаж.
type CleanupWorker struct {
	repo      domain.IdempotencyRepository
	metrics   *metrics.CleanupMetrics
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:      repo,
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewCleanupMetrics()
	}
	return w
}

// Run выполняет проход сразу и затем раз в interval, пока жив ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		w.metrics.RecordRun("error", deleted)
		w.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency cleanup failed")
	default:
		w.metrics.RecordRun("ok", deleted)
		if deleted > 0 {
			w.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
		}
	}
}

// DeleteExpired удаляет ключи с TTL <= before пачками по batchSize, пока
// очередная пачка не окажется неполной. Нулевой before означает «сейчас».
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now()
	}

	var total int
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		w.metrics.RecordDeleted(n)

		if n < w.batchSize {
			return total, nil
		}
	}
}
