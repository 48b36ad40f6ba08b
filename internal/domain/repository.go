package domain

import (
	"context"
	"time"
)

// ProductRepository описывает требования к хранилищу товаров.
// Остаток через Update не меняется: только продажи и корректировки в SaleStore.
type ProductRepository interface {
	// Create сохраняет новый товар вместе с начальным остатком.
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары, отсортированные по названию.
	List(ctx context.Context) ([]Product, error)
	// Update обновляет карточку товара, не трогая Stock.
	Update(ctx context.Context, product Product) error
	// Delete удаляет товар или возвращает ErrProductNotFound.
	Delete(ctx context.Context, id string) error
}

// StockMovementRepository отдаёт журнал движения остатка.
type StockMovementRepository interface {
	// List возвращает движения товара в хронологическом порядке (последние limit, если >0).
	List(ctx context.Context, productID string, limit int) ([]StockMovement, error)
}

// InvoiceRepository даёт доступ на чтение к зафиксированным счетам.
type InvoiceRepository interface {
	Get(ctx context.Context, id string) (Invoice, error)
	// List возвращает счета из окна фильтра по возрастанию CreatedAt.
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	// ListRecent возвращает последние limit счетов, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]Invoice, error)
}

// CustomerRepository описывает хранилище клиентов.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Update(ctx context.Context, customer Customer) error
	Delete(ctx context.Context, id string) error
}

// ExpenseRepository описывает хранилище расходов.
type ExpenseRepository interface {
	Create(ctx context.Context, expense Expense) error
	Get(ctx context.Context, id string) (Expense, error)
	// List возвращает расходы с датой в [from, to); нулевые границы не ограничивают.
	List(ctx context.Context, from, to time.Time) ([]Expense, error)
	Update(ctx context.Context, expense Expense) error
	Delete(ctx context.Context, id string) error
}
