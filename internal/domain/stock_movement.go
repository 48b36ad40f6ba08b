package domain

import "time"

// StockMovementReason — причина изменения остатка.
type StockMovementReason string

const (
	StockReasonSale       StockMovementReason = "sale"
	StockReasonRestock    StockMovementReason = "restock"
	StockReasonCorrection StockMovementReason = "correction"
	StockReasonInitial    StockMovementReason = "initial"
)

// Valid проверяет, что причина поддерживается.
func (r StockMovementReason) Valid() bool {
	switch r {
	case StockReasonSale, StockReasonRestock, StockReasonCorrection, StockReasonInitial:
		return true
	default:
		return false
	}
}

// StockMovement — запись журнала движения остатка товара.
type StockMovement struct {
	ProductID  string
	Delta      int64
	StockAfter int64
	Reason     StockMovementReason
	// Reference — ID счёта для продаж или произвольная пометка для корректировок.
	Reference string
	Occurred  time.Time
}
