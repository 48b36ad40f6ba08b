package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, tax_id, phone)
		VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.Name, customer.TaxID, customer.Phone); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, tax_id, phone, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.TaxID, &customer.Phone, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, tax_id, phone, created_at, updated_at
		FROM customers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.TaxID, &customer.Phone, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, tax_id = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
	`, customer.ID, customer.Name, customer.TaxID, customer.Phone)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return expectAffected(res, domain.ErrCustomerNotFound)
}

func (r *customerRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return expectAffected(res, domain.ErrCustomerNotFound)
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
