package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// CartLine — снимок товара (id, название, цена) и запрошенное количество.
type CartLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
}

// LineTotal возвращает точную сумму позиции без округления.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Validate проверяет позицию до обращения к хранилищу.
func (l CartLine) Validate() error {
	switch {
	case l.ProductID == "":
		return ErrProductIDRequired
	case l.Quantity <= 0:
		return ErrQuantityInvalid
	case l.UnitPrice.IsNegative():
		return ErrPriceInvalid
	default:
		return nil
	}
}

// Cart — упорядоченный набор позиций одной кассовой сессии.
// Остаток здесь не проверяется: это делается при фиксации продажи.
type Cart struct {
	lines []CartLine
}

// NewCart создаёт пустую корзину.
func NewCart() *Cart {
	return &Cart{}
}

// AddOne добавляет одну единицу товара.
func (c *Cart) AddOne(p Product) error {
	return c.Add(p, 1)
}

// Add добавляет qty единиц товара по его текущей цене продажи.
func (c *Cart) Add(p Product, qty int32) error {
	line := p.Snapshot()
	line.Quantity = qty
	return c.AddLine(line)
}

// AddLine увеличивает количество существующей позиции или добавляет новую в конец.
// Снимок цены существующей позиции не меняется.
func (c *Cart) AddLine(line CartLine) error {
	if line.Quantity <= 0 {
		return ErrQuantityInvalid
	}
	if line.ProductID == "" {
		return ErrProductIDRequired
	}
	if line.UnitPrice.IsNegative() {
		return ErrPriceInvalid
	}

	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			if c.lines[i].Quantity > math.MaxInt32-line.Quantity {
				return ErrQuantityInvalid
			}
			c.lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.lines = append(c.lines, line)
	return nil
}

// Remove удаляет позицию целиком. Возвращает false, если товара в корзине не было.
func (c *Cart) Remove(productID string) bool {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines возвращает копию позиций в порядке добавления.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Quantity возвращает количество товара в корзине (0, если позиции нет).
func (c *Cart) Quantity(productID string) int32 {
	for _, line := range c.lines {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

// Len возвращает число позиций.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Totals считает итоги корзины по ставке rate.
func (c *Cart) Totals(rate decimal.Decimal) (Totals, error) {
	return CalculateTotals(c.lines, rate)
}
