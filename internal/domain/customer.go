package domain

import (
	"strings"
	"time"
)

// WalkInCustomerName — подпись продажи без привязанного клиента.
const WalkInCustomerName = "Consumidor Final"

// Customer — клиент магазина. TaxID хранит RTN.
type Customer struct {
	ID        string
	Name      string
	TaxID     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	return errs
}

// Snapshot копирует данные клиента в счёт по значению.
func (c Customer) Snapshot() *CustomerSnapshot {
	return &CustomerSnapshot{ID: c.ID, Name: c.Name, TaxID: c.TaxID}
}

// CustomerSnapshot — копия клиента на момент продажи.
type CustomerSnapshot struct {
	ID    string
	Name  string
	TaxID string
}
