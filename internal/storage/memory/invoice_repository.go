package memory

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type invoiceRepositoryInMemory struct {
	store *Store
}

// NewInvoiceRepository возвращает репозиторий счетов поверх Store.
// Счета попадают сюда только через RunInTx.
func NewInvoiceRepository(store *Store) domain.InvoiceRepository {
	return &invoiceRepositoryInMemory{store: store}
}

func (r *invoiceRepositoryInMemory) Get(_ context.Context, id string) (domain.Invoice, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return invoice.Clone(), nil
}

// List возвращает счета в порядке фиксации; порядок фиксации совпадает с CreatedAt.
func (r *invoiceRepositoryInMemory) List(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invoice, 0, len(s.invoiceOrder))
	for _, id := range s.invoiceOrder {
		invoice := s.invoices[id]
		if !filter.Contains(invoice.CreatedAt) {
			continue
		}
		result = append(result, invoice.Clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (r *invoiceRepositoryInMemory) ListRecent(_ context.Context, limit int) ([]domain.Invoice, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.invoiceOrder) {
		limit = len(s.invoiceOrder)
	}

	result := make([]domain.Invoice, 0, limit)
	for i := len(s.invoiceOrder) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.invoices[s.invoiceOrder[i]].Clone())
	}
	return result, nil
}

var _ domain.InvoiceRepository = (*invoiceRepositoryInMemory)(nil)
