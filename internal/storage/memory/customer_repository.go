package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepositoryInMemory{store: store}
}

func (r *customerRepositoryInMemory) Create(_ context.Context, customer domain.Customer) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = s.now()
	}
	customer.UpdatedAt = customer.CreatedAt
	s.customers[customer.ID] = customer
	return nil
}

func (r *customerRepositoryInMemory) Get(_ context.Context, id string) (domain.Customer, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) List(_ context.Context) ([]domain.Customer, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *customerRepositoryInMemory) Update(_ context.Context, customer domain.Customer) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.customers[customer.ID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	customer.CreatedAt = current.CreatedAt
	customer.UpdatedAt = s.now()
	s.customers[customer.ID] = customer
	return nil
}

func (r *customerRepositoryInMemory) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	delete(s.customers, id)
	return nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
