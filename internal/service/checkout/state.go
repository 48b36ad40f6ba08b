package checkout

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

var allowedTransitions = map[domain.SaleState][]domain.SaleState{
	domain.SaleStateIdle:       {domain.SaleStateValidating},
	domain.SaleStateValidating: {domain.SaleStateCommitting, domain.SaleStateAborted},
	domain.SaleStateCommitting: {domain.SaleStateCommitted, domain.SaleStateAborted},
}

// CanTransition сообщает, допустим ли переход между состояниями продажи.
func CanTransition(from, to domain.SaleState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// saleRun — одна попытка фиксации: текущее состояние и контекст для логов.
type saleRun struct {
	state   domain.SaleState
	started time.Time
	logger  *log.Entry
	metrics *metrics.SaleMetrics
}

func (c *Committer) newRun(req SaleRequest) *saleRun {
	return &saleRun{
		state:   domain.SaleStateIdle,
		started: time.Now(),
		logger: c.logger.WithFields(log.Fields{
			"lines":      len(req.Lines),
			"cashier_id": req.CashierID,
		}),
		metrics: c.metrics,
	}
}

func (r *saleRun) moveTo(next domain.SaleState) {
	if !CanTransition(r.state, next) {
		// Недопустимый переход означает ошибку в коде, а не во вводе.
		panic("checkout: illegal sale transition " + string(r.state) + " -> " + string(next))
	}

	r.logger.WithFields(log.Fields{
		"from": r.state,
		"to":   next,
	}).Debug("sale transition")
	r.metrics.RecordTransition(string(r.state), string(next))
	r.state = next
}

func (r *saleRun) abort(err error) error {
	reason := abortReason(err)
	r.moveTo(domain.SaleStateAborted)
	r.metrics.RecordAborted(reason)

	entry := r.logger.WithError(err).WithField("reason", reason)
	if shortage, ok := domain.AsInsufficientStock(err); ok {
		entry = entry.WithFields(log.Fields{
			"product_id": shortage.ProductID,
			"requested":  shortage.Requested,
			"available":  shortage.Available,
		})
	}
	if reason == metrics.AbortReasonError {
		entry.Error("sale aborted")
	} else {
		entry.Warn("sale aborted")
	}
	return err
}

func abortReason(err error) string {
	switch {
	case domain.IsInputError(err):
		return metrics.AbortReasonInvalidInput
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.AbortReasonInsufficientStock
	case domain.IsStoreConflict(err):
		return metrics.AbortReasonConflict
	default:
		return metrics.AbortReasonError
	}
}
