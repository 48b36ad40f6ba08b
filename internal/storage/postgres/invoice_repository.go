package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const invoiceColumns = `id, number, subtotal, tax, total, tax_rate, customer_id, customer_name, customer_tax_id, cashier_id, created_at`

type invoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository создаёт PostgreSQL-реализацию InvoiceRepository.
func NewInvoiceRepository(store *Store) domain.InvoiceRepository {
	return &invoiceRepository{db: store.DB()}
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}

	invoices := []domain.Invoice{invoice}
	if err := r.attachItems(ctx, invoices); err != nil {
		return domain.Invoice{}, err
	}
	return invoices[0], nil
}

func (r *invoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		conditions []string
		args       []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, query, args...)
}

func (r *invoiceRepository) ListRecent(ctx context.Context, limit int) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	return r.query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limitArg)
}

func (r *invoiceRepository) query(ctx context.Context, query string, args ...any) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	if err := r.attachItems(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// attachItems догружает позиции одним запросом для всей пачки счетов.
func (r *invoiceRepository) attachItems(ctx context.Context, invoices []domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	index := make(map[string]int, len(invoices))
	ids := make([]string, 0, len(invoices))
	for i, invoice := range invoices {
		index[invoice.ID] = i
		ids = append(ids, invoice.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT invoice_id, product_id, name, unit_price, qty
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, line_no
	`, ids)
	if err != nil {
		return fmt.Errorf("select invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			invoiceID string
			item      domain.InvoiceItem
		)
		if err := rows.Scan(&invoiceID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("scan invoice item: %w", err)
		}
		i := index[invoiceID]
		invoices[i].Items = append(invoices[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate invoice items: %w", err)
	}
	return nil
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		invoice                                 domain.Invoice
		customerID, customerName, customerTaxID sql.NullString
	)
	if err := row.Scan(
		&invoice.ID, &invoice.Number, &invoice.Subtotal, &invoice.Tax, &invoice.Total, &invoice.TaxRate,
		&customerID, &customerName, &customerTaxID, &invoice.CashierID, &invoice.CreatedAt,
	); err != nil {
		return domain.Invoice{}, err
	}
	if customerName.Valid {
		invoice.Customer = &domain.CustomerSnapshot{
			ID:    customerID.String,
			Name:  customerName.String,
			TaxID: customerTaxID.String,
		}
	}
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	return invoice, nil
}

var _ domain.InvoiceRepository = (*invoiceRepository)(nil)
