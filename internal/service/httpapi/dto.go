package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
)

const dateLayout = "2006-01-02"

// Денежные суммы в ответах всегда строки с двумя знаками.
func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyPlaces)
}

type productRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" binding:"required"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int64           `json:"stock"`
	MinStock  *int64          `json:"min_stock"`
}

func (r productRequest) toDomain() domain.Product {
	return domain.Product{
		ID:        r.ID,
		Name:      r.Name,
		SKU:       r.SKU,
		Category:  r.Category,
		CostPrice: r.CostPrice,
		SalePrice: r.SalePrice,
		Stock:     r.Stock,
		MinStock:  r.MinStock,
	}
}

type productResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku,omitempty"`
	Category  string    `json:"category,omitempty"`
	CostPrice string    `json:"cost_price"`
	SalePrice string    `json:"sale_price"`
	Stock     int64     `json:"stock"`
	MinStock  *int64    `json:"min_stock,omitempty"`
	LowStock  bool      `json:"low_stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Category:  p.Category,
		CostPrice: money(p.CostPrice),
		SalePrice: money(p.SalePrice),
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		LowStock:  p.LowStock(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

type stockAdjustmentRequest struct {
	Delta     int64  `json:"delta" binding:"required"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type stockMovementResponse struct {
	ProductID  string    `json:"product_id"`
	Delta      int64     `json:"delta"`
	StockAfter int64     `json:"stock_after"`
	Reason     string    `json:"reason"`
	Reference  string    `json:"reference,omitempty"`
	Occurred   time.Time `json:"occurred_at"`
}

func toMovementResponse(m domain.StockMovement) stockMovementResponse {
	return stockMovementResponse{
		ProductID:  m.ProductID,
		Delta:      m.Delta,
		StockAfter: m.StockAfter,
		Reason:     string(m.Reason),
		Reference:  m.Reference,
		Occurred:   m.Occurred,
	}
}

type customerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name" binding:"required"`
	TaxID string `json:"rtn"`
	Phone string `json:"phone"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"rtn,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		TaxID:     c.TaxID,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type expenseRequest struct {
	ID          string          `json:"id"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	// Date — YYYY-MM-DD в поясе магазина или RFC3339.
	Date string `json:"date"`
}

type expenseResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

func toExpenseResponse(e domain.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      money(e.Amount),
		Category:    string(e.Category),
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
	}
}

type invoiceItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type customerSnapshotResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	TaxID string `json:"rtn,omitempty"`
}

type invoiceResponse struct {
	ID        string                    `json:"id"`
	Number    string                    `json:"number"`
	Items     []invoiceItemResponse     `json:"items"`
	Subtotal  string                    `json:"subtotal"`
	Tax       string                    `json:"tax"`
	Total     string                    `json:"total"`
	TaxRate   string                    `json:"tax_rate"`
	Customer  *customerSnapshotResponse `json:"customer,omitempty"`
	CashierID string                    `json:"cashier_id,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

func toInvoiceResponse(inv domain.Invoice) invoiceResponse {
	items := make([]invoiceItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, invoiceItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: money(item.UnitPrice),
			Quantity:  item.Quantity,
			LineTotal: money(item.LineTotal()),
		})
	}
	out := invoiceResponse{
		ID:        inv.ID,
		Number:    inv.Number,
		Items:     items,
		Subtotal:  money(inv.Subtotal),
		Tax:       money(inv.Tax),
		Total:     money(inv.Total),
		TaxRate:   inv.TaxRate.String(),
		CashierID: inv.CashierID,
		CreatedAt: inv.CreatedAt,
	}
	if inv.Customer != nil {
		out.Customer = &customerSnapshotResponse{
			ID:    inv.Customer.ID,
			Name:  inv.Customer.Name,
			TaxID: inv.Customer.TaxID,
		}
	}
	return out
}

type summaryResponse struct {
	Revenue    string `json:"revenue"`
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	SalesCount int    `json:"sales_count"`
	UnitsSold  int64  `json:"units_sold"`
	Expenses   string `json:"expenses"`
	Net        string `json:"net"`
}

func toSummaryResponse(s report.Summary) summaryResponse {
	return summaryResponse{
		Revenue:    money(s.Revenue),
		Subtotal:   money(s.Subtotal),
		Tax:        money(s.Tax),
		SalesCount: s.SalesCount,
		UnitsSold:  s.UnitsSold,
		Expenses:   money(s.Expenses),
		Net:        money(s.Net),
	}
}

type productRankResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Revenue   string `json:"revenue"`
}

type customerRankResponse struct {
	CustomerID string `json:"customer_id,omitempty"`
	Name       string `json:"name"`
	Revenue    string `json:"revenue"`
	Invoices   int    `json:"invoices"`
}

type dashboardResponse struct {
	TodayRevenue   string    `json:"today_revenue"`
	TodaySales     int       `json:"today_sales"`
	LowStockCount  int       `json:"low_stock_count"`
	CustomersCount int       `json:"customers_count"`
	ProductsCount  int       `json:"products_count"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// parseMoment разбирает дату YYYY-MM-DD (полночь в поясе loc) или RFC3339.
func parseMoment(value string, loc *time.Location) (time.Time, bool, error) {
	if value == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid time %q: expected YYYY-MM-DD or RFC3339", value)
	}
	return t, false, nil
}

// parseWindow читает from/to из query. Дата в to включает весь день.
func parseWindow(c *gin.Context, loc *time.Location) (time.Time, time.Time, error) {
	from, _, err := parseMoment(c.Query("from"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, dateOnly, err := parseMoment(c.Query("to"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from, to, nil
}

// queryLimit читает положительный limit с ограничением сверху.
func queryLimit(c *gin.Context, def, maxLimit int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
