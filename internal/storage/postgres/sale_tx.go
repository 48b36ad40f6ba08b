package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// saleTx реализует domain.SaleTx поверх *sql.Tx.
type saleTx struct {
	tx *sql.Tx
}

// LockProducts блокирует строки товаров через SELECT ... FOR UPDATE.
// ID сортируются, чтобы конкурентные продажи брали блокировки в одном порядке.
func (t *saleTx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	sorted := uniqueSorted(ids)
	result := make(map[string]domain.Product, len(sorted))
	if len(sorted) == 0 {
		return result, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	return result, nil
}

func (t *saleTx) SetStock(ctx context.Context, productID string, stock int64) error {
	if stock < 0 {
		return domain.ErrStockNegative
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = NOW()
		WHERE id = $1
	`, productID, stock)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for product stock: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// InsertInvoice сохраняет счёт. created_at назначает база в момент вставки
// (clock_timestamp), то есть уже после блокировки товаров: продажа, ждавшая
// чужую блокировку, получает более позднее время.
func (t *saleTx) InsertInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	var customerID, customerName, customerTaxID sql.NullString
	if invoice.Customer != nil {
		customerID = sql.NullString{String: invoice.Customer.ID, Valid: true}
		customerName = sql.NullString{String: invoice.Customer.Name, Valid: true}
		customerTaxID = sql.NullString{String: invoice.Customer.TaxID, Valid: true}
	}

	invoice = invoice.Clone()
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO invoices (
			id, number, subtotal, tax, total, tax_rate,
			customer_id, customer_name, customer_tax_id, cashier_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, clock_timestamp())
		RETURNING created_at
	`,
		invoice.ID, invoice.Number, invoice.Subtotal, invoice.Tax, invoice.Total, invoice.TaxRate,
		customerID, customerName, customerTaxID, invoice.CashierID,
	).Scan(&invoice.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Invoice{}, domain.ErrInvoiceAlreadyExists
		}
		return domain.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	invoice.CreatedAt = invoice.CreatedAt.UTC()

	for i, item := range invoice.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, line_no, product_id, name, unit_price, qty)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, invoice.ID, i+1, item.ProductID, item.Name, item.UnitPrice, item.Quantity); err != nil {
			return domain.Invoice{}, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	return invoice, nil
}

func (t *saleTx) AppendStockMovement(ctx context.Context, movement domain.StockMovement) error {
	return insertMovement(ctx, t.tx, movement)
}

func (t *saleTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return insertOutbox(ctx, t.tx, msg)
}

// execer — общий интерфейс *sql.DB и *sql.Tx для вставок.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertMovement(ctx context.Context, db execer, movement domain.StockMovement) error {
	var occurred any
	if !movement.Occurred.IsZero() {
		occurred = movement.Occurred
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO stock_movements (product_id, delta, stock_after, reason, reference, occurred_at)
		VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()))
	`, movement.ProductID, movement.Delta, movement.StockAfter, string(movement.Reason), movement.Reference, occurred); err != nil {
		return fmt.Errorf("append stock movement: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, db execer, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte{}
	}

	err := db.QueryRowContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload, status, attempt_count
		) VALUES ($1,$2,$3,$4,$5,$6,0)
		RETURNING created_at
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, payload, outboxPending).Scan(&msg.CreatedAt)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ domain.SaleTx = (*saleTx)(nil)
