package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// SaleRequest — всё, что нужно для фиксации одной продажи.
type SaleRequest struct {
	Lines     []domain.CartLine
	Customer  *domain.CustomerSnapshot
	CashierID string
	// TaxRate переопределяет ставку по умолчанию, если задан.
	TaxRate *decimal.Decimal
}

// DefaultNodeID — узел генератора счетов, если WithNode не задан.
// Экземпляры с общим хранилищем должны получать разные узлы.
const DefaultNodeID int64 = 1

// Finalizer фиксирует продажу и возвращает выписанный счёт.
type Finalizer interface {
	Finalize(ctx context.Context, req SaleRequest) (domain.Invoice, error)
}

// Committer проводит продажу атомарно: проверка остатков, счёт, списание
// и событие outbox в одной транзакции хранилища. Повторов не делает.
type Committer struct {
	store   domain.SaleStore
	node    *snowflake.Node
	cache   domain.ProductCache
	metrics *metrics.SaleMetrics
	logger  *log.Entry
	taxRate decimal.Decimal
}

// Option настраивает Committer.
type Option func(*Committer)

// WithProductCache задаёт кэш товаров, который сбрасывается после продажи.
func WithProductCache(cache domain.ProductCache) Option {
	return func(c *Committer) {
		c.cache = cache
	}
}

// WithMetrics задаёт коллекторы метрик.
func WithMetrics(m *metrics.SaleMetrics) Option {
	return func(c *Committer) {
		c.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Committer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTaxRate меняет ставку налога по умолчанию.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(c *Committer) {
		c.taxRate = rate
	}
}

// WithNode задаёт генератор идентификаторов счетов.
func WithNode(node *snowflake.Node) Option {
	return func(c *Committer) {
		if node != nil {
			c.node = node
		}
	}
}

// NewCommitter создаёт Committer поверх транзакционного хранилища.
func NewCommitter(store domain.SaleStore, opts ...Option) (*Committer, error) {
	if store == nil {
		return nil, errors.New("sale store is required")
	}

	c := &Committer{
		store:   store,
		logger:  log.WithField("component", "checkout"),
		taxRate: domain.DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := domain.ValidateTaxRate(c.taxRate); err != nil {
		return nil, err
	}
	if c.node == nil {
		node, err := snowflake.NewNode(DefaultNodeID)
		if err != nil {
			return nil, fmt.Errorf("create invoice id node: %w", err)
		}
		c.node = node
	}
	if c.metrics == nil {
		c.metrics = metrics.NewSaleMetrics()
	}

	return c, nil
}

// TaxRate возвращает ставку по умолчанию.
func (c *Committer) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Quote считает итоги без обращения к хранилищу.
func (c *Committer) Quote(lines []domain.CartLine, rate *decimal.Decimal) (domain.Totals, error) {
	if err := validateLines(lines); err != nil {
		return domain.Totals{}, err
	}
	return domain.CalculateTotals(lines, c.resolveRate(rate))
}

// Finalize проводит продажу. Ошибки ввода возвращаются до открытия транзакции.
// Нехватка остатка приходит как *domain.InsufficientStockError, конфликт фиксации
// как domain.ErrStoreConflict. В случае ошибки в хранилище ничего не меняется.
func (c *Committer) Finalize(ctx context.Context, req SaleRequest) (domain.Invoice, error) {
	run := c.newRun(req)
	c.metrics.InFlightStarted()
	defer func() {
		c.metrics.InFlightFinished()
		c.metrics.RecordDuration(time.Since(run.started))
	}()

	run.moveTo(domain.SaleStateValidating)

	rate := c.resolveRate(req.TaxRate)
	totals, err := c.validate(req.Lines, rate)
	if err != nil {
		return domain.Invoice{}, run.abort(err)
	}

	id := c.node.Generate()
	draft := domain.Invoice{
		ID:        id.String(),
		Number:    strings.ToUpper(id.Base36()),
		Items:     domain.InvoiceItemsFromCart(req.Lines),
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
		TaxRate:   rate,
		Customer:  req.Customer,
		CashierID: req.CashierID,
	}
	run.logger = run.logger.WithField("invoice_id", draft.ID)

	var (
		committed domain.Invoice
		plan      StockPlan
	)
	err = c.store.RunInTx(ctx, func(tx domain.SaleTx) error {
		ledger := NewStockLedger(tx)

		var verifyErr error
		plan, verifyErr = ledger.Verify(ctx, req.Lines)
		if verifyErr != nil {
			return verifyErr
		}
		// Остатки проверены под блокировкой: дальше только запись.
		run.moveTo(domain.SaleStateCommitting)

		inserted, insertErr := tx.InsertInvoice(ctx, draft)
		if insertErr != nil {
			return fmt.Errorf("insert invoice: %w", insertErr)
		}

		if applyErr := ledger.Apply(ctx, plan, domain.StockReasonSale, inserted.ID, inserted.CreatedAt); applyErr != nil {
			return applyErr
		}

		payload, marshalErr := json.Marshal(kafka.NewInvoiceCreatedEvent(inserted))
		if marshalErr != nil {
			return fmt.Errorf("marshal invoice event: %w", marshalErr)
		}
		if _, enqueueErr := tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: kafka.AggregateInvoice,
			AggregateID:   inserted.ID,
			EventType:     string(kafka.EventTypeInvoiceCreated),
			Payload:       payload,
		}); enqueueErr != nil {
			return fmt.Errorf("enqueue invoice event: %w", enqueueErr)
		}

		committed = inserted
		return nil
	})
	if err != nil {
		return domain.Invoice{}, run.abort(err)
	}

	run.moveTo(domain.SaleStateCommitted)
	total, _ := committed.Total.Float64()
	c.metrics.RecordCommitted(total, committed.UnitsSold())
	c.metrics.RecordOutboxEvent()

	run.logger.WithFields(log.Fields{
		"number": committed.Number,
		"total":  committed.Total.StringFixed(domain.MoneyPlaces),
		"lines":  len(committed.Items),
	}).Info("sale committed")

	if c.cache != nil {
		if cacheErr := c.cache.Invalidate(ctx, plan.ProductIDs()...); cacheErr != nil {
			run.logger.WithError(cacheErr).Warn("failed to invalidate product cache")
		}
	}

	return committed, nil
}

func (c *Committer) validate(lines []domain.CartLine, rate decimal.Decimal) (domain.Totals, error) {
	if err := validateLines(lines); err != nil {
		return domain.Totals{}, err
	}
	return domain.CalculateTotals(lines, rate)
}

func (c *Committer) resolveRate(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return c.taxRate
	}
	return *rate
}

func validateLines(lines []domain.CartLine) error {
	if len(lines) == 0 {
		return domain.ErrEmptyCart
	}
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}
