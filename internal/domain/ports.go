package domain

import (
	"context"
	"time"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// SaleTx — операции, доступные внутри одной транзакции хранилища.
// Чтения через LockProducts блокируют строки до конца транзакции.
type SaleTx interface {
	// LockProducts читает и блокирует товары. Отсутствующих ID нет в результате.
	LockProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// SetStock записывает новый остаток товара.
	SetStock(ctx context.Context, productID string, stock int64) error
	// InsertInvoice сохраняет счёт и возвращает его с назначенным CreatedAt.
	InsertInvoice(ctx context.Context, invoice Invoice) (Invoice, error)
	// AppendStockMovement добавляет запись в журнал движения остатка.
	AppendStockMovement(ctx context.Context, movement StockMovement) error
	// EnqueueOutbox кладёт событие в outbox той же транзакции.
	EnqueueOutbox(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// SaleStore — транзакционное хранилище. Если fn возвращает ошибку, все записи откатываются.
// Конфликт сериализации при фиксации возвращается как ErrStoreConflict.
type SaleStore interface {
	RunInTx(ctx context.Context, fn func(tx SaleTx) error) error
}

// ProductCache — кэш карточек товара для чтений вне транзакции.
type ProductCache interface {
	Get(ctx context.Context, id string) (Product, bool, error)
	Set(ctx context.Context, product Product) error
	Invalidate(ctx context.Context, ids ...string) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SaleState — состояние фиксации продажи для метрик/логов.
type SaleState string

const (
	SaleStateIdle       SaleState = "idle"
	SaleStateValidating SaleState = "validating"
	SaleStateCommitting SaleState = "committing"
	SaleStateCommitted  SaleState = "committed"
	SaleStateAborted    SaleState = "aborted"
)

// Terminal сообщает, что из состояния больше нет переходов.
func (s SaleState) Terminal() bool {
	return s == SaleStateCommitted || s == SaleStateAborted
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
