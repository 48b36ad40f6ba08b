package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

// runtimeDependencies — хранилища, выбранные драйвером из Config.
type runtimeDependencies struct {
	store           domain.SaleStore
	products        domain.ProductRepository
	movements       domain.StockMovementRepository
	customers       domain.CustomerRepository
	expenses        domain.ExpenseRepository
	invoices        domain.InvoiceRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			store:           store,
			products:        memory.NewProductRepository(store),
			movements:       memory.NewStockMovementRepository(store),
			customers:       memory.NewCustomerRepository(store),
			expenses:        memory.NewExpenseRepository(store),
			invoices:        memory.NewInvoiceRepository(store),
			outboxRepo:      memory.NewOutboxRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker:  healthcheck.NewPingChecker("storage", store),
			closeFn:         func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("using postgres storage")
		return runtimeDependencies{
			store:           store,
			products:        postgres.NewProductRepository(store),
			movements:       postgres.NewStockMovementRepository(store),
			customers:       postgres.NewCustomerRepository(store),
			expenses:        postgres.NewExpenseRepository(store),
			invoices:        postgres.NewInvoiceRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("storage", store),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
