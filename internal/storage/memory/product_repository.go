package memory

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает in-memory репозиторий товаров поверх Store.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

// Create сохраняет товар; начальный остаток попадает в журнал движения.
func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.ErrProductAlreadyExists
	}

	now := s.now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = cloneProduct(product)

	if product.Stock > 0 {
		s.movements[product.ID] = append(s.movements[product.ID], domain.StockMovement{
			ProductID:  product.ID,
			Delta:      product.Stock,
			StockAfter: product.Stock,
			Reason:     domain.StockReasonInitial,
			Occurred:   now,
		})
	}
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

func (r *productRepositoryInMemory) List(_ context.Context) ([]domain.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		result = append(result, cloneProduct(product))
	}
	sortProductsByName(result)
	return result, nil
}

// Update меняет карточку товара; Stock и CreatedAt остаются прежними.
func (r *productRepositoryInMemory) Update(_ context.Context, product domain.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = s.now()
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *productRepositoryInMemory) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)

type movementRepositoryInMemory struct {
	store *Store
}

// NewStockMovementRepository возвращает журнал движения остатка поверх Store.
func NewStockMovementRepository(store *Store) domain.StockMovementRepository {
	return &movementRepositoryInMemory{store: store}
}

// List возвращает движения товара в хронологическом порядке.
func (r *movementRepositoryInMemory) List(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.movements[productID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	result := make([]domain.StockMovement, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.StockMovementRepository = (*movementRepositoryInMemory)(nil)
