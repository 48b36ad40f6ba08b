package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// RetryConfig — параметры повтора продажи при конфликте хранилища.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig — одна попытка, то есть без повторов.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   1,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryingFinalizer заново проводит продажу с нуля, если хранилище вернуло
// domain.ErrStoreConflict. Любая другая ошибка возвращается сразу.
type RetryingFinalizer struct {
	finalizer Finalizer
	config    RetryConfig
	logger    *log.Entry
	metrics   *metrics.SaleMetrics
}

// NewRetryingFinalizer оборачивает finalizer. metrics может быть nil.
func NewRetryingFinalizer(finalizer Finalizer, config RetryConfig, m *metrics.SaleMetrics, logger *log.Entry) *RetryingFinalizer {
	if logger == nil {
		logger = log.New().WithField("component", "checkout-retry")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryingFinalizer{
		finalizer: finalizer,
		config:    config,
		logger:    logger,
		metrics:   m,
	}
}

// Finalize выполняет продажу с повторами по конфликту.
func (r *RetryingFinalizer) Finalize(ctx context.Context, req SaleRequest) (domain.Invoice, error) {
	delay := r.config.InitialDelay

	for attempt := 1; ; attempt++ {
		invoice, err := r.finalizer.Finalize(ctx, req)
		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"invoice_id": invoice.ID,
					"attempt":    attempt,
				}).Info("sale committed after retry")
			}
			return invoice, nil
		}

		if !domain.IsStoreConflict(err) || attempt >= r.config.MaxAttempts {
			if attempt > 1 {
				r.logger.WithError(err).WithField("attempts", attempt).Warn("sale failed after retries")
			}
			return domain.Invoice{}, err
		}

		r.logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("store conflict, retrying sale")
		if r.metrics != nil {
			r.metrics.RecordRetry()
		}

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return domain.Invoice{}, waitErr
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ Finalizer = (*Committer)(nil)
	_ Finalizer = (*RetryingFinalizer)(nil)
)
