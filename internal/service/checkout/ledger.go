package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Decrement — списание по одному товару внутри продажи.
type Decrement struct {
	ProductID   string
	Quantity    int64
	StockBefore int64
	StockAfter  int64
}

// StockPlan — проверенные списания в порядке первого появления товара в корзине.
type StockPlan struct {
	Decrements []Decrement
}

// ProductIDs возвращает товары, затронутые продажей.
func (p StockPlan) ProductIDs() []string {
	ids := make([]string, 0, len(p.Decrements))
	for _, d := range p.Decrements {
		ids = append(ids, d.ProductID)
	}
	return ids
}

// StockLedger читает и списывает остатки внутри открытой транзакции продажи.
type StockLedger struct {
	tx domain.SaleTx
}

// NewStockLedger привязывает журнал к транзакции.
func NewStockLedger(tx domain.SaleTx) *StockLedger {
	return &StockLedger{tx: tx}
}

// Verify блокирует товары корзины и проверяет остатки позиция за позицией.
// Количества одного товара в разных позициях суммируются. Товар, которого
// нет в хранилище, считается товаром с нулевым остатком.
// Первая же нехватка возвращается как *domain.InsufficientStockError.
func (l *StockLedger) Verify(ctx context.Context, lines []domain.CartLine) (StockPlan, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := l.tx.LockProducts(ctx, ids)
	if err != nil {
		return StockPlan{}, fmt.Errorf("lock products: %w", err)
	}

	requested := make(map[string]int64, len(lines))
	position := make(map[string]int, len(lines))
	var plan StockPlan

	for _, line := range lines {
		product, found := products[line.ProductID]
		available := int64(0)
		name := line.Name
		if found {
			available = product.Stock
			name = product.Name
		}

		total := requested[line.ProductID] + int64(line.Quantity)
		if total > available {
			return StockPlan{}, &domain.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: name,
				Requested:   total,
				Available:   available,
			}
		}
		requested[line.ProductID] = total

		idx, seen := position[line.ProductID]
		if !seen {
			position[line.ProductID] = len(plan.Decrements)
			plan.Decrements = append(plan.Decrements, Decrement{
				ProductID:   line.ProductID,
				StockBefore: available,
			})
			idx = len(plan.Decrements) - 1
		}
		plan.Decrements[idx].Quantity = total
		plan.Decrements[idx].StockAfter = available - total
	}

	return plan, nil
}

// Apply записывает новые остатки и по одной записи журнала на товар.
func (l *StockLedger) Apply(ctx context.Context, plan StockPlan, reason domain.StockMovementReason, reference string, occurred time.Time) error {
	for _, d := range plan.Decrements {
		if err := l.tx.SetStock(ctx, d.ProductID, d.StockAfter); err != nil {
			return fmt.Errorf("set stock for %s: %w", d.ProductID, err)
		}
		err := l.tx.AppendStockMovement(ctx, domain.StockMovement{
			ProductID:  d.ProductID,
			Delta:      -d.Quantity,
			StockAfter: d.StockAfter,
			Reason:     reason,
			Reference:  reference,
			Occurred:   occurred,
		})
		if err != nil {
			return fmt.Errorf("append stock movement for %s: %w", d.ProductID, err)
		}
	}
	return nil
}
