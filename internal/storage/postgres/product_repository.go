package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const productColumns = `id, name, sku, category, cost_price, sale_price, stock, min_stock, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product  domain.Product
		minStock sql.NullInt64
	)
	if err := row.Scan(
		&product.ID, &product.Name, &product.SKU, &product.Category,
		&product.CostPrice, &product.SalePrice, &product.Stock, &minStock,
		&product.CreatedAt, &product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	if minStock.Valid {
		value := minStock.Int64
		product.MinStock = &value
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

// Create вставляет товар и запись начального остатка в одной транзакции.
func (r *productRepository) Create(ctx context.Context, product domain.Product) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, category, cost_price, sale_price, stock, min_stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		product.ID, product.Name, product.SKU, product.Category,
		product.CostPrice, product.SalePrice, product.Stock, nullableInt64(product.MinStock),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductAlreadyExists
		}
		return fmt.Errorf("insert product: %w", err)
	}

	if product.Stock > 0 {
		if err = insertMovement(ctx, tx, domain.StockMovement{
			ProductID:  product.ID,
			Delta:      product.Stock,
			StockAfter: product.Stock,
			Reason:     domain.StockReasonInitial,
		}); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Update не трогает stock: остаток меняется только через RunInTx.
func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    sku = $3,
		    category = $4,
		    cost_price = $5,
		    sale_price = $6,
		    min_stock = $7,
		    updated_at = NOW()
		WHERE id = $1
	`,
		product.ID, product.Name, product.SKU, product.Category,
		product.CostPrice, product.SalePrice, nullableInt64(product.MinStock),
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound)
}

var _ domain.ProductRepository = (*productRepository)(nil)

type stockMovementRepository struct {
	db *sql.DB
}

// NewStockMovementRepository создаёт PostgreSQL-реализацию журнала остатков.
func NewStockMovementRepository(store *Store) domain.StockMovementRepository {
	return &stockMovementRepository{db: store.DB()}
}

func (r *stockMovementRepository) List(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT product_id, delta, stock_after, reason, reference, occurred_at
		FROM (
			SELECT id, product_id, delta, stock_after, reason, reference, occurred_at
			FROM stock_movements
			WHERE product_id = $1
			ORDER BY occurred_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY occurred_at ASC, id ASC
	`
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.db.QueryContext(ctx, query, productID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var (
			movement domain.StockMovement
			reason   string
		)
		if err := rows.Scan(&movement.ProductID, &movement.Delta, &movement.StockAfter, &reason, &movement.Reference, &movement.Occurred); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movement.Reason = domain.StockMovementReason(reason)
		movement.Occurred = movement.Occurred.UTC()
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return movements, nil
}

var _ domain.StockMovementRepository = (*stockMovementRepository)(nil)

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
