// Package httpapi — REST API админки магазина поверх gin.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
)

// BasePath — префикс всех маршрутов API.
const BasePath = "/api/v1"

// Catalog — операции каталога, доступные через REST.
type Catalog interface {
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	LowStock(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, adj catalog.StockAdjustment) (domain.StockMovement, error)
	Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	CreateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error)
	GetExpense(ctx context.Context, id string) (domain.Expense, error)
	ListExpenses(ctx context.Context, from, to time.Time) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Reports — отчёты и печать чеков.
type Reports interface {
	Summary(ctx context.Context, from, to time.Time) (report.Summary, error)
	TopProducts(ctx context.Context, from, to time.Time, n int) ([]report.ProductRank, error)
	TopCustomers(ctx context.Context, from, to time.Time, n int) ([]report.CustomerRank, error)
	Dashboard(ctx context.Context) (report.Dashboard, error)
	Receipt(ctx context.Context, invoiceID string) (string, error)
	Location() *time.Location
}

// Dependencies — зависимости REST API.
type Dependencies struct {
	Catalog  Catalog
	Invoices domain.InvoiceRepository
	Reports  Reports
	Metrics  *metrics.HTTPMetrics
}

type handler struct {
	catalog  Catalog
	invoices domain.InvoiceRepository
	reports  Reports
	logger   *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами API.
func NewRouter(deps Dependencies, logger *log.Entry) (*gin.Engine, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Invoices == nil:
		return nil, errors.New("invoice repository is required")
	case deps.Reports == nil:
		return nil, errors.New("reports are required")
	}
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}

	h := &handler{
		catalog:  deps.Catalog,
		invoices: deps.Invoices,
		reports:  deps.Reports,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger, deps.Metrics))

	api := router.Group(BasePath)
	h.registerProducts(api.Group("/products"))
	h.registerCustomers(api.Group("/customers"))
	h.registerExpenses(api.Group("/expenses"))
	h.registerInvoices(api.Group("/invoices"))
	h.registerReports(api.Group("/reports"))

	return router, nil
}

// requestLogger пишет строку лога и метрики на каждый запрос.
func requestLogger(logger *log.Entry, m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if m != nil {
			m.Observe(c.Request.Method, route, status, duration)
		}

		entry := logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": duration,
		})
		if status >= 500 {
			entry.Error("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
