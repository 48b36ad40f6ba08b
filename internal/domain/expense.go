package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseCategory — категория расхода из фиксированного справочника.
type ExpenseCategory string

const (
	ExpenseCategoryServices   ExpenseCategory = "Servicios"
	ExpenseCategorySalaries   ExpenseCategory = "Salarios"
	ExpenseCategorySpareParts ExpenseCategory = "Repuestos"
	ExpenseCategoryRent       ExpenseCategory = "Alquiler"
	ExpenseCategoryMarketing  ExpenseCategory = "Marketing"
	ExpenseCategoryOther      ExpenseCategory = "Otros"
)

// Valid проверяет, что категория поддерживается.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseCategoryServices, ExpenseCategorySalaries, ExpenseCategorySpareParts,
		ExpenseCategoryRent, ExpenseCategoryMarketing, ExpenseCategoryOther:
		return true
	default:
		return false
	}
}

// Expense — операционный расход магазина.
type Expense struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Category    ExpenseCategory
	Date        time.Time
	CreatedAt   time.Time
}

// Validate проверяет инварианты расхода.
func (e *Expense) Validate() []error {
	var errs []error
	if strings.TrimSpace(e.Description) == "" {
		errs = append(errs, ErrExpenseDescriptionRequired)
	}
	if !e.Amount.IsPositive() {
		errs = append(errs, ErrExpenseAmountInvalid)
	}
	if !e.Category.Valid() {
		errs = append(errs, ErrExpenseCategoryInvalid)
	}
	return errs
}
