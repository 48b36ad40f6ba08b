package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func seedIntegrationProduct(t *testing.T, store *Store, id string, stock int64) domain.Product {
	t.Helper()

	minStock := int64(2)
	product := domain.Product{
		ID:        id,
		Name:      "Filtro " + id,
		SKU:       "SKU-" + id,
		Category:  "Repuestos",
		CostPrice: decimal.RequireFromString("60.00"),
		SalePrice: decimal.RequireFromString("100.00"),
		Stock:     stock,
		MinStock:  &minStock,
	}
	require.NoError(t, NewProductRepository(store).Create(context.Background(), product))
	return product
}

func TestSaleStore_PostgresCommitAndRead(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedIntegrationProduct(t, store, "p-filter", 5)

	var inserted domain.Invoice
	err := store.RunInTx(ctx, func(tx domain.SaleTx) error {
		products, err := tx.LockProducts(ctx, []string{"p-filter", "p-missing", "p-filter"})
		if err != nil {
			return err
		}
		require.Len(t, products, 1)
		require.Equal(t, int64(5), products["p-filter"].Stock)
		require.NotNil(t, products["p-filter"].MinStock)

		if err := tx.SetStock(ctx, "p-filter", 3); err != nil {
			return err
		}
		inserted, err = tx.InsertInvoice(ctx, domain.Invoice{
			ID:       "inv-1",
			Number:   "INV1",
			Items:    []domain.InvoiceItem{{ProductID: "p-filter", Name: "Filtro", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2}},
			Subtotal: decimal.RequireFromString("200.00"),
			Tax:      decimal.RequireFromString("30.00"),
			Total:    decimal.RequireFromString("230.00"),
			TaxRate:  domain.DefaultTaxRate,
			Customer: &domain.CustomerSnapshot{ID: "c-1", Name: "Ana", TaxID: "0801"},
		})
		if err != nil {
			return err
		}
		if err := tx.AppendStockMovement(ctx, domain.StockMovement{ProductID: "p-filter", Delta: -2, StockAfter: 3, Reason: domain.StockReasonSale, Reference: "inv-1"}); err != nil {
			return err
		}
		_, err = tx.EnqueueOutbox(ctx, domain.OutboxMessage{AggregateType: "invoice", AggregateID: "inv-1", EventType: "invoice.created", Payload: []byte(`{}`)})
		return err
	})
	require.NoError(t, err)
	require.False(t, inserted.CreatedAt.IsZero())

	product, err := NewProductRepository(store).Get(ctx, "p-filter")
	require.NoError(t, err)
	require.Equal(t, int64(3), product.Stock)

	invoice, err := NewInvoiceRepository(store).Get(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, invoice.Items, 1)
	require.True(t, invoice.Total.Equal(decimal.RequireFromString("230.00")))
	require.NotNil(t, invoice.Customer)
	require.Equal(t, "Ana", invoice.Customer.Name)
	require.WithinDuration(t, inserted.CreatedAt, invoice.CreatedAt, time.Millisecond)

	movements, err := NewStockMovementRepository(store).List(ctx, "p-filter", 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, domain.StockReasonInitial, movements[0].Reason)
	require.Equal(t, int64(-2), movements[1].Delta)

	recent, err := NewInvoiceRepository(store).ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	stats, err := NewOutboxRepository(store).Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)
}

func TestSaleStore_PostgresRollbackLeavesNoTrace(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedIntegrationProduct(t, store, "p-oil", 1)
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(tx domain.SaleTx) error {
		if err := tx.SetStock(ctx, "p-oil", 0); err != nil {
			return err
		}
		if _, err := tx.InsertInvoice(ctx, domain.Invoice{ID: "inv-x", Number: "INVX", TaxRate: domain.DefaultTaxRate}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	product, err := NewProductRepository(store).Get(ctx, "p-oil")
	require.NoError(t, err)
	require.Equal(t, int64(1), product.Stock)

	_, err = NewInvoiceRepository(store).Get(ctx, "inv-x")
	require.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestSaleStore_PostgresLockSerializesLastUnit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedIntegrationProduct(t, store, "p-last", 1)

	sell := func(invoiceID string) error {
		return store.RunInTx(ctx, func(tx domain.SaleTx) error {
			products, err := tx.LockProducts(ctx, []string{"p-last"})
			if err != nil {
				return err
			}
			current := products["p-last"].Stock
			if current < 1 {
				return &domain.InsufficientStockError{ProductID: "p-last", Requested: 1, Available: current}
			}
			if err := tx.SetStock(ctx, "p-last", current-1); err != nil {
				return err
			}
			_, err = tx.InsertInvoice(ctx, domain.Invoice{ID: invoiceID, Number: invoiceID, TaxRate: domain.DefaultTaxRate})
			return err
		})
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, id := range []string{"inv-a", "inv-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sell(id)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrStoreConflict), "unexpected error: %v", err)
	}
	require.Equal(t, 1, succeeded)

	product, err := NewProductRepository(store).Get(ctx, "p-last")
	require.NoError(t, err)
	require.Equal(t, int64(0), product.Stock)
}

func TestCatalogRepositories_PostgresCRUD(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedIntegrationProduct(t, store, "p-1", 4)

	products := NewProductRepository(store)
	require.ErrorIs(t, products.Create(ctx, domain.Product{ID: "p-1", Name: "dup", SalePrice: decimal.NewFromInt(1)}), domain.ErrProductAlreadyExists)

	update := domain.Product{ID: "p-1", Name: "Aceite", SalePrice: decimal.RequireFromString("250.00"), Stock: 100}
	require.NoError(t, products.Update(ctx, update))
	got, err := products.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, "Aceite", got.Name)
	require.Equal(t, int64(4), got.Stock)
	require.Nil(t, got.MinStock)

	customers := NewCustomerRepository(store)
	require.NoError(t, customers.Create(ctx, domain.Customer{ID: "c-1", Name: "Ana", TaxID: "0801", Phone: "9999-9999"}))
	require.NoError(t, customers.Update(ctx, domain.Customer{ID: "c-1", Name: "Ana María"}))
	listed, err := customers.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Ana María", listed[0].Name)
	require.ErrorIs(t, customers.Delete(ctx, "c-missing"), domain.ErrCustomerNotFound)

	expenses := NewExpenseRepository(store)
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, expenses.Create(ctx, domain.Expense{ID: "e-1", Description: "Luz", Amount: decimal.NewFromInt(900), Category: domain.ExpenseCategoryServices, Date: day}))
	require.NoError(t, expenses.Create(ctx, domain.Expense{ID: "e-2", Description: "Renta", Amount: decimal.NewFromInt(5000), Category: domain.ExpenseCategoryRent, Date: day.AddDate(0, 1, 0)}))
	windowed, err := expenses.List(ctx, day, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, "e-1", windowed[0].ID)
	all, err := expenses.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, products.Delete(ctx, "p-1"))
	_, err = products.Get(ctx, "p-1")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestSaleStore_PostgresWaitingSaleIsStampedAfterHolder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedIntegrationProduct(t, store, "p-shared", 5)
	seedIntegrationProduct(t, store, "p-side", 5)

	insert := func(tx domain.SaleTx, id string) (domain.Invoice, error) {
		return tx.InsertInvoice(ctx, domain.Invoice{ID: id, Number: id, TaxRate: domain.DefaultTaxRate})
	}

	var (
		waiterBegun = make(chan struct{})
		holderReady = make(chan struct{})
		holder      domain.Invoice
		waiter      domain.Invoice
		waiterErr   error
		wg          sync.WaitGroup
	)

	// Ожидающая транзакция начинается раньше, но получает блокировку позже.
	wg.Add(1)
	go func() {
		defer wg.Done()
		waiterErr = store.RunInTx(ctx, func(tx domain.SaleTx) error {
			if _, err := tx.LockProducts(ctx, []string{"p-side"}); err != nil {
				return err
			}
			close(waiterBegun)
			<-holderReady
			if _, err := tx.LockProducts(ctx, []string{"p-shared"}); err != nil {
				return err
			}
			var err error
			waiter, err = insert(tx, "inv-waiter")
			return err
		})
	}()

	<-waiterBegun
	err := store.RunInTx(ctx, func(tx domain.SaleTx) error {
		if _, err := tx.LockProducts(ctx, []string{"p-shared"}); err != nil {
			return err
		}
		close(holderReady)
		time.Sleep(100 * time.Millisecond)
		var err error
		holder, err = insert(tx, "inv-holder")
		return err
	})
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, waiterErr)

	require.True(t, waiter.CreatedAt.After(holder.CreatedAt), "waiter %s must follow holder %s", waiter.CreatedAt, holder.CreatedAt)

	recent, err := NewInvoiceRepository(store).ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "inv-waiter", recent[0].ID, "newest first follows commit order")
}
