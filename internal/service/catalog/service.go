package catalog

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	productcache "github.com/vladislavdragonenkov/pos/internal/cache"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// Repositories — хранилища, с которыми работает каталог.
type Repositories struct {
	Products  domain.ProductRepository
	Movements domain.StockMovementRepository
	Customers domain.CustomerRepository
	Expenses  domain.ExpenseRepository
	Store     domain.SaleStore
}

// Service — CRUD товаров, клиентов и расходов плюс корректировка остатков.
type Service struct {
	products  domain.ProductRepository
	movements domain.StockMovementRepository
	customers domain.CustomerRepository
	expenses  domain.ExpenseRepository
	store     domain.SaleStore
	cache     domain.ProductCache
	metrics   *metrics.SaleMetrics
	logger    *log.Entry
	now       func() time.Time
	newID     func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает cache-aside для чтения товаров.
func WithCache(cache domain.ProductCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithMetrics задаёт метрики корректировок.
func WithMetrics(m *metrics.SaleMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService собирает каталог.
func NewService(repos Repositories, opts ...Option) (*Service, error) {
	switch {
	case repos.Products == nil:
		return nil, errors.New("product repository is required")
	case repos.Movements == nil:
		return nil, errors.New("stock movement repository is required")
	case repos.Customers == nil:
		return nil, errors.New("customer repository is required")
	case repos.Expenses == nil:
		return nil, errors.New("expense repository is required")
	case repos.Store == nil:
		return nil, errors.New("sale store is required")
	}

	s := &Service{
		products:  repos.Products,
		movements: repos.Movements,
		customers: repos.Customers,
		expenses:  repos.Expenses,
		store:     repos.Store,
		cache:     productcache.Noop{},
		logger:    log.WithField("component", "catalog"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
