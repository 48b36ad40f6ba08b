package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога. Stock авторитетен только в хранилище.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Category  string
	CostPrice decimal.Decimal
	SalePrice decimal.Decimal
	Stock     int64
	// MinStock — порог низкого остатка; nil трактуется как 0.
	MinStock  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет инварианты карточки товара и возвращает список замечаний.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if !p.SalePrice.IsPositive() {
		errs = append(errs, ErrSalePriceInvalid)
	}
	if p.CostPrice.IsNegative() {
		errs = append(errs, ErrCostPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.MinStock != nil && *p.MinStock < 0 {
		errs = append(errs, ErrMinStockNegative)
	}

	return errs
}

// MinStockOrZero возвращает порог низкого остатка.
func (p Product) MinStockOrZero() int64 {
	if p.MinStock == nil {
		return 0
	}
	return *p.MinStock
}

// LowStock сообщает, что остаток не выше порога.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStockOrZero()
}

// Snapshot фиксирует товар для корзины по текущей цене продажи.
func (p Product) Snapshot() CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.SalePrice,
	}
}
