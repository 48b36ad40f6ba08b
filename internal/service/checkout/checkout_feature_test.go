package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type checkoutFeature struct {
	store     *memory.Store
	products  domain.ProductRepository
	invoices  domain.InvoiceRepository
	committer *Committer
	cart      *domain.Cart
	invoice   domain.Invoice
	err       error
}

func (f *checkoutFeature) reset() error {
	f.store = memory.NewStore()
	f.products = memory.NewProductRepository(f.store)
	f.invoices = memory.NewInvoiceRepository(f.store)
	f.cart = domain.NewCart()
	f.invoice = domain.Invoice{}
	f.err = nil

	committer, err := NewCommitter(f.store, WithMetrics(metrics.NewSaleMetricsWithRegisterer(prometheus.NewRegistry())))
	if err != nil {
		return err
	}
	f.committer = committer
	return nil
}

func (f *checkoutFeature) theCatalogHasProducts(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 4 {
			return fmt.Errorf("row %d: expected 4 cells, got %d", i, len(row.Cells))
		}
		price, err := decimal.NewFromString(row.Cells[2].Value)
		if err != nil {
			return fmt.Errorf("row %d: price: %w", i, err)
		}
		stock, err := strconv.ParseInt(row.Cells[3].Value, 10, 64)
		if err != nil {
			return fmt.Errorf("row %d: stock: %w", i, err)
		}
		product := domain.Product{
			ID:        row.Cells[0].Value,
			Name:      row.Cells[1].Value,
			SalePrice: price,
			Stock:     stock,
		}
		if err := f.products.Create(context.Background(), product); err != nil {
			return err
		}
	}
	return nil
}

func (f *checkoutFeature) theCashierAddsUnitsToTheCart(qty int, productID string) error {
	product, err := f.products.Get(context.Background(), productID)
	if err != nil {
		return err
	}
	return f.cart.Add(product, int32(qty))
}

func (f *checkoutFeature) theCashierRemovesFromTheCart(productID string) error {
	if !f.cart.Remove(productID) {
		return fmt.Errorf("product %s is not in the cart", productID)
	}
	return nil
}

func (f *checkoutFeature) theCashierFinalizesTheSale() error {
	f.invoice, f.err = f.committer.Finalize(context.Background(), SaleRequest{Lines: f.cart.Lines()})
	return nil
}

func (f *checkoutFeature) theSaleIsCommitted() error {
	if f.err != nil {
		return fmt.Errorf("expected committed sale, got error: %v", f.err)
	}
	if f.invoice.ID == "" {
		return errors.New("expected invoice id")
	}
	return nil
}

func (f *checkoutFeature) amountIs(name string, got decimal.Decimal, want string) error {
	expected, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(expected) {
		return fmt.Errorf("expected %s %s, got %s", name, expected, got)
	}
	return nil
}

func (f *checkoutFeature) theInvoiceSubtotalIs(want string) error {
	return f.amountIs("subtotal", f.invoice.Subtotal, want)
}

func (f *checkoutFeature) theInvoiceTaxIs(want string) error {
	return f.amountIs("tax", f.invoice.Tax, want)
}

func (f *checkoutFeature) theInvoiceTotalIs(want string) error {
	return f.amountIs("total", f.invoice.Total, want)
}

func (f *checkoutFeature) theStockOfIs(productID string, want int) error {
	product, err := f.products.Get(context.Background(), productID)
	if err != nil {
		return err
	}
	if product.Stock != int64(want) {
		return fmt.Errorf("expected stock %d for %s, got %d", want, productID, product.Stock)
	}
	return nil
}

func (f *checkoutFeature) theSaleFailsWithInsufficientStockFor(name string) error {
	shortage, ok := domain.AsInsufficientStock(f.err)
	if !ok {
		return fmt.Errorf("expected insufficient stock error, got %v", f.err)
	}
	if shortage.ProductName != name {
		return fmt.Errorf("expected shortage for %s, got %s", name, shortage.ProductName)
	}
	return nil
}

func (f *checkoutFeature) theSaleFailsAsInvalidInput() error {
	if !domain.IsInputError(f.err) {
		return fmt.Errorf("expected input error, got %v", f.err)
	}
	return nil
}

func (f *checkoutFeature) noInvoiceWasRecorded() error {
	invoices, err := f.invoices.ListRecent(context.Background(), 0)
	if err != nil {
		return err
	}
	if len(invoices) != 0 {
		return fmt.Errorf("expected no invoices, got %d", len(invoices))
	}
	return nil
}

func (f *checkoutFeature) theCartQuantityOfIs(productID string, want int) error {
	if got := f.cart.Quantity(productID); got != int32(want) {
		return fmt.Errorf("expected cart quantity %d for %s, got %d", want, productID, got)
	}
	return nil
}

func initializeCheckoutScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, f.reset()
	})

	ctx.Step(`^the catalog has products:$`, f.theCatalogHasProducts)

	ctx.Step(`^the cashier adds (\d+) units of "([^"]*)" to the cart$`, f.theCashierAddsUnitsToTheCart)
	ctx.Step(`^the cashier removes "([^"]*)" from the cart$`, f.theCashierRemovesFromTheCart)
	ctx.Step(`^the cashier finalizes the sale$`, f.theCashierFinalizesTheSale)

	ctx.Step(`^the sale is committed$`, f.theSaleIsCommitted)
	ctx.Step(`^the invoice subtotal is "([^"]*)"$`, f.theInvoiceSubtotalIs)
	ctx.Step(`^the invoice tax is "([^"]*)"$`, f.theInvoiceTaxIs)
	ctx.Step(`^the invoice total is "([^"]*)"$`, f.theInvoiceTotalIs)
	ctx.Step(`^the stock of "([^"]*)" is (\d+)$`, f.theStockOfIs)
	ctx.Step(`^the sale fails with insufficient stock for "([^"]*)"$`, f.theSaleFailsWithInsufficientStockFor)
	ctx.Step(`^the sale fails as invalid input$`, f.theSaleFailsAsInvalidInput)
	ctx.Step(`^no invoice was recorded$`, f.noInvoiceWasRecorded)
	ctx.Step(`^the cart quantity of "([^"]*)" is (\d+)$`, f.theCartQuantityOfIs)
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCheckoutScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
