package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceItem — неизменяемая копия позиции корзины в счёте.
type InvoiceItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
}

// LineTotal возвращает сумму позиции.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Invoice — запись о завершённой продаже. После создания не меняется.
type Invoice struct {
	ID     string
	Number string
	Items  []InvoiceItem
	// Subtotal/Tax/Total посчитаны CalculateTotals на момент фиксации.
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	TaxRate   decimal.Decimal
	Customer  *CustomerSnapshot
	CashierID string
	// CreatedAt назначает хранилище внутри транзакции.
	CreatedAt time.Time
}

// UnitsSold возвращает количество проданных единиц по всем позициям.
func (inv Invoice) UnitsSold() int64 {
	var units int64
	for _, item := range inv.Items {
		units += int64(item.Quantity)
	}
	return units
}

// CustomerKey возвращает ключ группировки по клиенту и подпись для отчётов.
func (inv Invoice) CustomerKey() (key, name string) {
	if inv.Customer == nil {
		return "", WalkInCustomerName
	}
	if inv.Customer.ID == "" {
		return "name:" + inv.Customer.Name, inv.Customer.Name
	}
	return inv.Customer.ID, inv.Customer.Name
}

// Clone возвращает глубокую копию счёта.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Items = append([]InvoiceItem(nil), inv.Items...)
	if inv.Customer != nil {
		customer := *inv.Customer
		out.Customer = &customer
	}
	return out
}

// InvoiceItemsFromCart копирует позиции корзины в позиции счёта.
func InvoiceItemsFromCart(lines []CartLine) []InvoiceItem {
	items := make([]InvoiceItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, InvoiceItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return items
}

// InvoiceFilter ограничивает выборку счетов по времени создания.
type InvoiceFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Contains проверяет, попадает ли момент в полуинтервал [From, To).
func (f InvoiceFilter) Contains(at time.Time) bool {
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !at.Before(f.To) {
		return false
	}
	return true
}
