package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

func newUUID() string {
	return uuid.NewString()
}

// CreateProduct проверяет и сохраняет новый товар. Пустой ID заменяется UUID.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" {
		product.ID = s.newID()
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"stock":      product.Stock,
	}).Info("product created")
	return product, nil
}

// GetProduct читает товар через кэш; при промахе идёт в хранилище и заполняет кэш.
// Ошибки кэша не прерывают чтение.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if cached, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache read failed")
	} else if ok {
		return cached, nil
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache write failed")
	}
	return product, nil
}

// ListProducts возвращает товары по названию.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// LowStock возвращает товары, у которых остаток не выше минимального.
func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

// UpdateProduct меняет карточку товара. Остаток не меняется: для этого есть AdjustStock.
func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	current, err := s.products.Get(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = s.now()
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, product.ID)
	return product, nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// StockAdjustment — ручное изменение остатка.
type StockAdjustment struct {
	ProductID string
	Delta     int64
	// Reason — restock или correction; пустое значение трактуется как correction.
	Reason    domain.StockMovementReason
	Reference string
}

// AdjustStock меняет остаток на Delta в транзакции хранилища, записывает движение
// и событие stock.adjusted. Остаток не может стать отрицательным.
func (s *Service) AdjustStock(ctx context.Context, adj StockAdjustment) (domain.StockMovement, error) {
	if adj.Delta == 0 {
		return domain.StockMovement{}, domain.ErrStockDeltaZero
	}
	if adj.Reason == "" {
		adj.Reason = domain.StockReasonCorrection
	}
	if adj.Reason != domain.StockReasonRestock && adj.Reason != domain.StockReasonCorrection {
		return domain.StockMovement{}, fmt.Errorf("%w: %q", domain.ErrStockReasonInvalid, adj.Reason)
	}

	var movement domain.StockMovement
	err := s.store.RunInTx(ctx, func(tx domain.SaleTx) error {
		locked, err := tx.LockProducts(ctx, []string{adj.ProductID})
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		product, ok := locked[adj.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}

		next := product.Stock + adj.Delta
		if next < 0 {
			return &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   -adj.Delta,
				Available:   product.Stock,
			}
		}
		if err := tx.SetStock(ctx, product.ID, next); err != nil {
			return fmt.Errorf("set stock: %w", err)
		}

		movement = domain.StockMovement{
			ProductID:  product.ID,
			Delta:      adj.Delta,
			StockAfter: next,
			Reason:     adj.Reason,
			Reference:  adj.Reference,
			Occurred:   s.now(),
		}
		if err := tx.AppendStockMovement(ctx, movement); err != nil {
			return fmt.Errorf("append stock movement: %w", err)
		}

		payload, err := json.Marshal(kafka.NewStockAdjustedEvent(movement))
		if err != nil {
			return fmt.Errorf("marshal stock event: %w", err)
		}
		_, err = tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: kafka.AggregateProduct,
			AggregateID:   product.ID,
			EventType:     string(kafka.EventTypeStockAdjusted),
			Payload:       payload,
		})
		if err != nil {
			return fmt.Errorf("enqueue stock event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordStockAdjustment()
		s.metrics.RecordOutboxEvent()
	}
	s.invalidate(ctx, adj.ProductID)

	s.logger.WithFields(log.Fields{
		"product_id":  movement.ProductID,
		"delta":       movement.Delta,
		"stock_after": movement.StockAfter,
		"reason":      movement.Reason,
	}).Info("stock adjusted")
	return movement, nil
}

// Movements возвращает журнал движения остатка товара.
func (s *Service) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.movements.List(ctx, productID, limit)
}

// CartLine собирает снимок позиции корзины по текущей карточке товара.
func (s *Service) CartLine(ctx context.Context, productID string, qty int32) (domain.CartLine, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartLine{}, err
	}
	line := product.Snapshot()
	line.Quantity = qty
	return line, nil
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.WithError(err).WithField("product_ids", ids).Warn("product cache invalidation failed")
	}
}
