package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type expenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository создаёт PostgreSQL-реализацию ExpenseRepository.
func NewExpenseRepository(store *Store) domain.ExpenseRepository {
	return &expenseRepository{db: store.DB()}
}

func (r *expenseRepository) Create(ctx context.Context, expense domain.Expense) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, description, amount, category, expense_date)
		VALUES ($1,$2,$3,$4,$5)
	`, expense.ID, expense.Description, expense.Amount, string(expense.Category), expense.Date); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *expenseRepository) Get(ctx context.Context, id string) (domain.Expense, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	expense, err := scanExpense(r.db.QueryRowContext(ctx, `
		SELECT id, description, amount, category, expense_date, created_at
		FROM expenses
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Expense{}, domain.ErrExpenseNotFound
		}
		return domain.Expense{}, fmt.Errorf("select expense: %w", err)
	}
	return expense, nil
}

func (r *expenseRepository) List(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var fromArg, toArg any
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount, category, expense_date, created_at
		FROM expenses
		WHERE ($1::timestamptz IS NULL OR expense_date >= $1)
		  AND ($2::timestamptz IS NULL OR expense_date < $2)
		ORDER BY expense_date DESC, id ASC
	`, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *expenseRepository) Update(ctx context.Context, expense domain.Expense) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET description = $2, amount = $3, category = $4, expense_date = $5
		WHERE id = $1
	`, expense.ID, expense.Description, expense.Amount, string(expense.Category), expense.Date)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return expectAffected(res, domain.ErrExpenseNotFound)
}

func (r *expenseRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectAffected(res, domain.ErrExpenseNotFound)
}

func scanExpense(row rowScanner) (domain.Expense, error) {
	var (
		expense  domain.Expense
		category string
	)
	if err := row.Scan(&expense.ID, &expense.Description, &expense.Amount, &category, &expense.Date, &expense.CreatedAt); err != nil {
		return domain.Expense{}, err
	}
	expense.Category = domain.ExpenseCategory(category)
	expense.Date = expense.Date.UTC()
	expense.CreatedAt = expense.CreatedAt.UTC()
	return expense, nil
}

var _ domain.ExpenseRepository = (*expenseRepository)(nil)
