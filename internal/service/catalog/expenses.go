package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// CreateExpense сохраняет расход. Без даты расход датируется текущим моментом.
func (s *Service) CreateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	expense.Description = strings.TrimSpace(expense.Description)
	if expense.ID == "" {
		expense.ID = s.newID()
	}
	now := s.now()
	if expense.Date.IsZero() {
		expense.Date = now
	}
	if errs := expense.Validate(); len(errs) > 0 {
		return domain.Expense{}, errors.Join(errs...)
	}

	expense.CreatedAt = now
	if err := s.expenses.Create(ctx, expense); err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	return s.expenses.Get(ctx, id)
}

// ListExpenses возвращает расходы с датой в [from, to).
func (s *Service) ListExpenses(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	return s.expenses.List(ctx, from, to)
}

func (s *Service) UpdateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	current, err := s.expenses.Get(ctx, expense.ID)
	if err != nil {
		return domain.Expense{}, err
	}

	expense.Description = strings.TrimSpace(expense.Description)
	if expense.Date.IsZero() {
		expense.Date = current.Date
	}
	expense.CreatedAt = current.CreatedAt
	if errs := expense.Validate(); len(errs) > 0 {
		return domain.Expense{}, errors.Join(errs...)
	}
	if err := s.expenses.Update(ctx, expense); err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.expenses.Delete(ctx, id)
}
