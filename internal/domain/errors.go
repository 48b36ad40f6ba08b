package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart — попытка провести продажу без позиций.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrQuantityInvalid — количество в позиции <= 0.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrPriceInvalid — отрицательная цена за единицу.
	ErrPriceInvalid = errors.New("unit price must be non-negative")
	// ErrTaxRateInvalid — отрицательная ставка налога.
	ErrTaxRateInvalid = errors.New("tax rate must be non-negative")
	// ErrTaxRatePrecision — у ставки больше знаков после запятой, чем хранит счёт.
	ErrTaxRatePrecision = fmt.Errorf("tax rate must have at most %d decimal places", TaxRatePlaces)
	// ErrProductIDRequired — позиция без идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// ErrInsufficientStock — бизнес-ошибка: на складе меньше, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStoreConflict — хранилище не смогло зафиксировать транзакцию из-за конфликта.
	ErrStoreConflict = errors.New("store transaction conflict")

	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductAlreadyExists — товар с таким ID уже есть.
	ErrProductAlreadyExists = errors.New("product already exists")
	// ErrProductNameRequired — у товара нет названия.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrSalePriceInvalid — цена продажи должна быть больше нуля.
	ErrSalePriceInvalid = errors.New("sale price must be greater than zero")
	// ErrCostPriceInvalid — отрицательная себестоимость.
	ErrCostPriceInvalid = errors.New("cost price must be non-negative")
	// ErrStockNegative — операция привела бы остаток к отрицательному значению.
	ErrStockNegative = errors.New("stock must be non-negative")
	// ErrMinStockNegative — отрицательный минимальный остаток.
	ErrMinStockNegative = errors.New("min stock must be non-negative")
	// ErrStockDeltaZero — корректировка остатка на ноль единиц.
	ErrStockDeltaZero = errors.New("stock delta must not be zero")
	// ErrStockReasonInvalid — ручная корректировка допускает только restock и correction.
	ErrStockReasonInvalid = errors.New("stock adjustment reason is not supported")

	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerNameRequired — у клиента нет имени.
	ErrCustomerNameRequired = errors.New("customer name is required")

	// ErrExpenseNotFound возвращается, если расход не найден.
	ErrExpenseNotFound = errors.New("expense not found")
	// ErrExpenseDescriptionRequired — у расхода нет описания.
	ErrExpenseDescriptionRequired = errors.New("expense description is required")
	// ErrExpenseAmountInvalid — сумма расхода должна быть больше нуля.
	ErrExpenseAmountInvalid = errors.New("expense amount must be greater than zero")
	// ErrExpenseCategoryInvalid — категория не из справочника.
	ErrExpenseCategoryInvalid = errors.New("expense category is not supported")

	// ErrInvoiceNotFound возвращается, если счёт не найден.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceAlreadyExists — повторная вставка счёта с тем же ID.
	ErrInvoiceAlreadyExists = errors.New("invoice already exists")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — запрос без idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — не передан хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ повторно использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound возвращается, если запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError описывает, какой товар и на сколько не хватило.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// Unwrap позволяет сравнивать ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Shortage возвращает, сколько единиц не хватило.
func (e *InsufficientStockError) Shortage() int64 {
	return e.Requested - e.Available
}

// IsStoreConflict проверяет, является ли ошибка конфликтом транзакции хранилища.
func IsStoreConflict(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}

// IsIdempotencyConflict проверяет, что ключ уже занят (тем же или другим запросом).
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// AsInsufficientStock извлекает детали нехватки остатка, если они есть.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var target *InsufficientStockError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsInputError сообщает, что ошибка относится к некорректному вводу и
// обнаруживается до обращения к хранилищу.
func IsInputError(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrQuantityInvalid),
		errors.Is(err, ErrPriceInvalid),
		errors.Is(err, ErrTaxRateInvalid),
		errors.Is(err, ErrTaxRatePrecision),
		errors.Is(err, ErrProductIDRequired):
		return true
	default:
		return false
	}
}

// IsValidationError сообщает, что запись каталога не прошла проверку полей.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrProductNameRequired),
		errors.Is(err, ErrSalePriceInvalid),
		errors.Is(err, ErrCostPriceInvalid),
		errors.Is(err, ErrStockNegative),
		errors.Is(err, ErrMinStockNegative),
		errors.Is(err, ErrStockDeltaZero),
		errors.Is(err, ErrStockReasonInvalid),
		errors.Is(err, ErrCustomerNameRequired),
		errors.Is(err, ErrExpenseDescriptionRequired),
		errors.Is(err, ErrExpenseAmountInvalid),
		errors.Is(err, ErrExpenseCategoryInvalid):
		return true
	default:
		return false
	}
}

// IsNotFound объединяет ошибки отсутствующих записей.
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrExpenseNotFound),
		errors.Is(err, ErrInvoiceNotFound):
		return true
	default:
		return false
	}
}
