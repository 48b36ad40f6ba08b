package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Store — in-memory хранилище для локальной разработки и тестов.
// Все транзакции выполняются под одним мьютексом, поэтому конфликтов не бывает:
// конкурентные продажи просто сериализуются.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	products  map[string]domain.Product
	customers map[string]domain.Customer
	expenses  map[string]domain.Expense
	invoices  map[string]domain.Invoice
	// invoiceOrder хранит ID счетов в порядке фиксации.
	invoiceOrder []string
	movements    map[string][]domain.StockMovement
	outbox       map[string]*outboxRecord
	outboxOrder  []string
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:       func() time.Time { return time.Now().UTC() },
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		expenses:  make(map[string]domain.Expense),
		invoices:  make(map[string]domain.Invoice),
		movements: make(map[string][]domain.StockMovement),
		outbox:    make(map[string]*outboxRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping всегда успешен; нужен для health-проверок наравне с PostgreSQL.
func (s *Store) Ping(context.Context) error {
	return nil
}

// RunInTx выполняет fn под эксклюзивной блокировкой хранилища.
// Записи буферизуются и применяются только если fn вернул nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.SaleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &saleTx{store: s, stock: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.apply()
	return nil
}

type saleTx struct {
	store     *Store
	stock     map[string]int64
	invoices  []domain.Invoice
	movements []domain.StockMovement
	outbox    []domain.OutboxMessage
}

func (tx *saleTx) LockProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		product, ok := tx.store.products[id]
		if !ok {
			continue
		}
		if stock, ok := tx.stock[id]; ok {
			product.Stock = stock
		}
		result[id] = cloneProduct(product)
	}
	return result, nil
}

func (tx *saleTx) SetStock(_ context.Context, productID string, stock int64) error {
	if _, ok := tx.store.products[productID]; !ok {
		return domain.ErrProductNotFound
	}
	if stock < 0 {
		return domain.ErrStockNegative
	}
	tx.stock[productID] = stock
	return nil
}

func (tx *saleTx) InsertInvoice(_ context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	if _, exists := tx.store.invoices[invoice.ID]; exists {
		return domain.Invoice{}, domain.ErrInvoiceAlreadyExists
	}
	for _, pending := range tx.invoices {
		if pending.ID == invoice.ID {
			return domain.Invoice{}, domain.ErrInvoiceAlreadyExists
		}
	}

	invoice = invoice.Clone()
	invoice.CreatedAt = tx.store.now()
	tx.invoices = append(tx.invoices, invoice)
	return invoice.Clone(), nil
}

func (tx *saleTx) AppendStockMovement(_ context.Context, movement domain.StockMovement) error {
	if movement.Occurred.IsZero() {
		movement.Occurred = tx.store.now()
	}
	tx.movements = append(tx.movements, movement)
	return nil
}

func (tx *saleTx) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	msg = prepareOutboxMessage(msg, tx.store.now())
	tx.outbox = append(tx.outbox, msg)
	return msg, nil
}

// apply переносит буфер транзакции в хранилище. Вызывается под s.mu.
func (tx *saleTx) apply() {
	s := tx.store
	now := s.now()

	for id, stock := range tx.stock {
		product := s.products[id]
		product.Stock = stock
		product.UpdatedAt = now
		s.products[id] = product
	}
	for _, invoice := range tx.invoices {
		s.invoices[invoice.ID] = invoice
		s.invoiceOrder = append(s.invoiceOrder, invoice.ID)
	}
	for _, movement := range tx.movements {
		s.movements[movement.ProductID] = append(s.movements[movement.ProductID], movement)
	}
	for _, msg := range tx.outbox {
		s.putOutbox(msg)
	}
}

func cloneProduct(p domain.Product) domain.Product {
	if p.MinStock != nil {
		minStock := *p.MinStock
		p.MinStock = &minStock
	}
	return p
}

func sortProductsByName(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Name == products[j].Name {
			return products[i].ID < products[j].ID
		}
		return products[i].Name < products[j].Name
	})
}

var _ domain.SaleStore = (*Store)(nil)
