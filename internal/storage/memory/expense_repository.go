package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type expenseRepositoryInMemory struct {
	store *Store
}

// NewExpenseRepository возвращает in-memory репозиторий расходов.
func NewExpenseRepository(store *Store) domain.ExpenseRepository {
	return &expenseRepositoryInMemory{store: store}
}

func (r *expenseRepositoryInMemory) Create(_ context.Context, expense domain.Expense) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = s.now()
	}
	s.expenses[expense.ID] = expense
	return nil
}

func (r *expenseRepositoryInMemory) Get(_ context.Context, id string) (domain.Expense, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expenses[id]
	if !ok {
		return domain.Expense{}, domain.ErrExpenseNotFound
	}
	return expense, nil
}

// List возвращает расходы в [from, to), новые первыми.
func (r *expenseRepositoryInMemory) List(_ context.Context, from, to time.Time) ([]domain.Expense, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := domain.InvoiceFilter{From: from, To: to}
	result := make([]domain.Expense, 0, len(s.expenses))
	for _, expense := range s.expenses {
		if !window.Contains(expense.Date) {
			continue
		}
		result = append(result, expense)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (r *expenseRepositoryInMemory) Update(_ context.Context, expense domain.Expense) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.expenses[expense.ID]
	if !ok {
		return domain.ErrExpenseNotFound
	}
	expense.CreatedAt = current.CreatedAt
	s.expenses[expense.ID] = expense
	return nil
}

func (r *expenseRepositoryInMemory) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return domain.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

var _ domain.ExpenseRepository = (*expenseRepositoryInMemory)(nil)
