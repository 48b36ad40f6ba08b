package domain

import "github.com/shopspring/decimal"

// MoneyPlaces — точность денежных сумм после округления налога.
const MoneyPlaces = 2

// TaxRatePlaces — сколько знаков ставки сохраняется в счёте.
const TaxRatePlaces = 4

// DefaultTaxRate — ставка ISV по умолчанию.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// Totals — итоги продажи.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals считает subtotal = Σ(price×qty) без округления,
// tax = round(subtotal×rate, 2) (половина от нуля) и total = subtotal + tax.
// Функция чистая: при одинаковом входе всегда даёт одинаковый результат.
func CalculateTotals(lines []CartLine, rate decimal.Decimal) (Totals, error) {
	if err := ValidateTaxRate(rate); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, ErrQuantityInvalid
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, ErrPriceInvalid
		}
		subtotal = subtotal.Add(line.LineTotal())
	}

	tax := subtotal.Mul(rate).Round(MoneyPlaces)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}, nil
}

// ValidateTaxRate проверяет, что ставка неотрицательна и помещается в TaxRatePlaces знаков.
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrTaxRateInvalid
	}
	if !rate.Equal(rate.Truncate(TaxRatePlaces)) {
		return ErrTaxRatePrecision
	}
	return nil
}
