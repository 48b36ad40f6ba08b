package report

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Dashboard — показатели главного экрана.
type Dashboard struct {
	TodayRevenue   decimal.Decimal
	TodaySales     int
	LowStockCount  int
	CustomersCount int
	ProductsCount  int
	GeneratedAt    time.Time
}

// Sources — данные, из которых строятся отчёты.
type Sources struct {
	Invoices  domain.InvoiceRepository
	Products  domain.ProductRepository
	Customers domain.CustomerRepository
	Expenses  domain.ExpenseRepository
}

// Service строит отчёты только из зафиксированных счетов и справочников.
type Service struct {
	invoices  domain.InvoiceRepository
	products  domain.ProductRepository
	customers domain.CustomerRepository
	expenses  domain.ExpenseRepository
	profile   BusinessProfile
	location  *time.Location
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени для границы «сегодня».
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService собирает сервис отчётов. Граница «сегодня» считается в поясе профиля.
func NewService(src Sources, profile BusinessProfile, opts ...Option) (*Service, error) {
	if src.Invoices == nil || src.Products == nil || src.Customers == nil || src.Expenses == nil {
		return nil, errors.New("report sources are incomplete")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	loc, err := loadLocation(profile.Location)
	if err != nil {
		return nil, err
	}
	s := &Service{
		invoices:  src.Invoices,
		products:  src.Products,
		customers: src.Customers,
		expenses:  src.Expenses,
		profile:   profile,
		location:  loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Profile возвращает профиль магазина.
func (s *Service) Profile() BusinessProfile {
	return s.profile
}

// Location возвращает часовой пояс магазина.
func (s *Service) Location() *time.Location {
	return s.location
}

// Summary — выручка, число продаж, проданные единицы и расходы за [from, to).
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	invoices, err := s.invoices.List(ctx, domain.InvoiceFilter{From: from, To: to})
	if err != nil {
		return Summary{}, err
	}
	expenses, err := s.expenses.List(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(invoices, expenses), nil
}

// TopProducts — n самых продаваемых товаров по количеству за [from, to).
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, n int) ([]ProductRank, error) {
	invoices, err := s.invoices.List(ctx, domain.InvoiceFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return RankProducts(invoices, n), nil
}

// TopCustomers — n клиентов с наибольшей выручкой за [from, to).
func (s *Service) TopCustomers(ctx context.Context, from, to time.Time, n int) ([]CustomerRank, error) {
	invoices, err := s.invoices.List(ctx, domain.InvoiceFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return RankCustomers(invoices, n), nil
}

// RecentInvoices — последние limit счетов, новые первыми.
func (s *Service) RecentInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	return s.invoices.ListRecent(ctx, limit)
}

// Dashboard считает выручку за текущие сутки, число товаров с низким остатком и клиентов.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	now := s.now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	today, err := s.invoices.List(ctx, domain.InvoiceFilter{From: startOfDay})
	if err != nil {
		return Dashboard{}, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	customers, err := s.customers.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TodayRevenue:   decimal.Zero,
		TodaySales:     len(today),
		CustomersCount: len(customers),
		ProductsCount:  len(products),
		GeneratedAt:    now.UTC(),
	}
	for _, inv := range today {
		d.TodayRevenue = d.TodayRevenue.Add(inv.Total)
	}
	for _, p := range products {
		if p.LowStock() {
			d.LowStockCount++
		}
	}
	return d, nil
}

// Receipt печатает чек по ID счёта.
func (s *Service) Receipt(ctx context.Context, invoiceID string) (string, error) {
	invoice, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	return RenderReceipt(s.profile, invoice)
}
