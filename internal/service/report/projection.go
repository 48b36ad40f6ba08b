package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Summary — итоги продаж за окно.
type Summary struct {
	Revenue    decimal.Decimal
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	SalesCount int
	UnitsSold  int64
	Expenses   decimal.Decimal
	// Net = Revenue - Expenses.
	Net decimal.Decimal
}

// ProductRank — строка рейтинга товаров.
type ProductRank struct {
	ProductID string
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

// CustomerRank — строка рейтинга клиентов. Продажи без клиента собираются
// в одну строку с пустым CustomerID и именем domain.WalkInCustomerName.
type CustomerRank struct {
	CustomerID string
	Name       string
	Revenue    decimal.Decimal
	Invoices   int
}

// Summarize сворачивает счета и расходы в итоги.
func Summarize(invoices []domain.Invoice, expenses []domain.Expense) Summary {
	s := Summary{
		Revenue:  decimal.Zero,
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, inv := range invoices {
		s.Revenue = s.Revenue.Add(inv.Total)
		s.Subtotal = s.Subtotal.Add(inv.Subtotal)
		s.Tax = s.Tax.Add(inv.Tax)
		s.UnitsSold += inv.UnitsSold()
		s.SalesCount++
	}
	for _, e := range expenses {
		s.Expenses = s.Expenses.Add(e.Amount)
	}
	s.Net = s.Revenue.Sub(s.Expenses)
	return s
}

// RankProducts группирует позиции по товару, сортирует по количеству по убыванию
// и берёт первые n (n <= 0 означает все). При равенстве сохраняется порядок первого появления.
func RankProducts(invoices []domain.Invoice, n int) []ProductRank {
	index := make(map[string]int)
	var ranks []ProductRank

	for _, inv := range invoices {
		for _, item := range inv.Items {
			i, ok := index[item.ProductID]
			if !ok {
				i = len(ranks)
				index[item.ProductID] = i
				ranks = append(ranks, ProductRank{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero})
			}
			ranks[i].Quantity += int64(item.Quantity)
			ranks[i].Revenue = ranks[i].Revenue.Add(item.LineTotal())
		}
	}

	sort.SliceStable(ranks, func(a, b int) bool {
		return ranks[a].Quantity > ranks[b].Quantity
	})
	return head(ranks, n)
}

// RankCustomers группирует счета по клиенту и сортирует по выручке по убыванию.
func RankCustomers(invoices []domain.Invoice, n int) []CustomerRank {
	index := make(map[string]int)
	var ranks []CustomerRank

	for _, inv := range invoices {
		key, name := inv.CustomerKey()
		i, ok := index[key]
		if !ok {
			i = len(ranks)
			index[key] = i
			rank := CustomerRank{Name: name, Revenue: decimal.Zero}
			if inv.Customer != nil {
				rank.CustomerID = inv.Customer.ID
			}
			ranks = append(ranks, rank)
		}
		ranks[i].Revenue = ranks[i].Revenue.Add(inv.Total)
		ranks[i].Invoices++
	}

	sort.SliceStable(ranks, func(a, b int) bool {
		return ranks[a].Revenue.GreaterThan(ranks[b].Revenue)
	})
	return head(ranks, n)
}

func head[T any](items []T, n int) []T {
	if items == nil {
		items = []T{}
	}
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
