package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// CreateCustomer сохраняет клиента.
func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	if customer.ID == "" {
		customer.ID = s.newID()
	}
	if errs := customer.Validate(); len(errs) > 0 {
		return domain.Customer{}, errors.Join(errs...)
	}

	now := s.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	if err := s.customers.Create(ctx, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return s.customers.Get(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.customers.List(ctx)
}

// UpdateCustomer меняет данные клиента. Уже выписанные счета хранят свой снимок и не меняются.
func (s *Service) UpdateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	current, err := s.customers.Get(ctx, customer.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	customer.Name = strings.TrimSpace(customer.Name)
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	customer.CreatedAt = current.CreatedAt
	customer.UpdatedAt = s.now()
	if errs := customer.Validate(); len(errs) > 0 {
		return domain.Customer{}, errors.Join(errs...)
	}
	if err := s.customers.Update(ctx, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.customers.Delete(ctx, id)
}

// CustomerSnapshot возвращает копию клиента для счёта.
func (s *Service) CustomerSnapshot(ctx context.Context, id string) (*domain.CustomerSnapshot, error) {
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return customer.Snapshot(), nil
}
