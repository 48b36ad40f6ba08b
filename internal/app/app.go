// Package app собирает кассовый сервис из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/pos/internal/cache"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/pos/internal/service/grpc"
	"github.com/vladislavdragonenkov/pos/internal/service/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// services — доменные сервисы поверх выбранного хранилища.
type services struct {
	catalog   *catalog.Service
	committer *checkout.Committer
	finalizer checkout.Finalizer
	reports   *report.Service
}

// Run поднимает gRPC кассы, REST админки, служебный HTTP и фоновые воркеры.
// Возвращает ctx.Err() после остановки по сигналу или ошибку gRPC сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithField("build", version.String()).Info("pos service is starting")

	taxRate, err := cfg.ParsedTaxRate()
	if err != nil {
		return err
	}
	profile, err := report.LoadBusinessProfile(cfg.BusinessProfilePath)
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("storage close failed")
		}
	}()

	monitor := healthcheck.NewMonitor(version.GetVersion())
	monitor.Add("storage", deps.storageChecker)

	productCache, closeCache := initProductCache(cfg, logger, monitor)
	defer closeCache()

	svc, err := buildServices(cfg, deps, productCache, taxRate, profile, logger)
	if err != nil {
		return err
	}

	producer, _ := initKafkaProducer(cfg.Brokers(), logger)
	defer closeKafka(producer, logger)

	bg := newBackground(ctx)
	defer bg.stop()
	startOutboxRelay(bg, cfg, deps.outboxRepo, producer, monitor, logger)
	startIdempotencyCleanup(bg, cfg, deps.idempotencyRepo, logger)

	alertConsumer, err := startAlertConsumer(bg.ctx, cfg, deps.products, producer, logger)
	if err != nil {
		logger.WithError(err).Warn("low-stock alerts are disabled")
	}
	if alertConsumer != nil {
		defer func() {
			if err := alertConsumer.Stop(); err != nil {
				logger.WithError(err).Warn("alert consumer stop failed")
			}
		}()
	}

	grpcServer, healthSrv := newGRPCServer(grpcsvc.NewPosService(grpcsvc.Dependencies{
		Finalizer:   svc.finalizer,
		Quoter:      svc.committer,
		Products:    svc.catalog,
		Customers:   svc.catalog,
		Invoices:    deps.invoices,
		Idempotency: deps.idempotencyRepo,
	}, logger.WithField("layer", "grpc")), logger)

	router, err := httpapi.NewRouter(httpapi.Dependencies{
		Catalog:  svc.catalog,
		Invoices: deps.invoices,
		Reports:  svc.reports,
		Metrics:  metrics.NewHTTPMetrics(),
	}, logger.WithField("layer", "http"))
	if err != nil {
		return fmt.Errorf("init http api: %w", err)
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout}
	logger.WithField("addr", httpLis.Addr().String()+httpapi.BasePath).Info("rest api is up")
	serveHTTP(apiSrv, httpLis, logger)
	opsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, monitor)

	served := make(chan error, 1)
	go func() {
		logger.WithField("addr", grpcLis.Addr().String()).Info("grpc api is up")
		served <- grpcServer.Serve(grpcLis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		err = ctx.Err()
	case err = <-served:
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
	}
	shutdownHTTP(apiSrv, logger)
	shutdownHTTP(opsSrv, logger)
	return err
}

func buildServices(cfg Config, deps runtimeDependencies, productCache domain.ProductCache, taxRate decimal.Decimal, profile report.BusinessProfile, logger *log.Entry) (services, error) {
	saleMetrics := metrics.NewSaleMetrics()

	catalogSvc, err := catalog.NewService(catalog.Repositories{
		Products:  deps.products,
		Movements: deps.movements,
		Customers: deps.customers,
		Expenses:  deps.expenses,
		Store:     deps.store,
	},
		catalog.WithCache(productCache),
		catalog.WithMetrics(saleMetrics),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
	)
	if err != nil {
		return services{}, fmt.Errorf("init catalog: %w", err)
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return services{}, fmt.Errorf("init invoice id node: %w", err)
	}
	committer, err := checkout.NewCommitter(deps.store,
		checkout.WithProductCache(productCache),
		checkout.WithMetrics(saleMetrics),
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithTaxRate(taxRate),
		checkout.WithNode(node),
	)
	if err != nil {
		return services{}, fmt.Errorf("init sale committer: %w", err)
	}

	retry := checkout.DefaultRetryConfig()
	retry.MaxAttempts = cfg.CheckoutRetryAttempts
	finalizer := checkout.NewRetryingFinalizer(committer, retry, saleMetrics, logger.WithField("layer", "checkout-retry"))

	reports, err := report.NewService(report.Sources{
		Invoices:  deps.invoices,
		Products:  deps.products,
		Customers: deps.customers,
		Expenses:  deps.expenses,
	}, profile)
	if err != nil {
		return services{}, fmt.Errorf("init reports: %w", err)
	}

	return services{catalog: catalogSvc, committer: committer, finalizer: finalizer, reports: reports}, nil
}

// initProductCache подключает Redis, если задан адрес. Недоступный Redis не мешает
// запуску: каталог читает товары напрямую из хранилища.
func initProductCache(cfg Config, logger *log.Entry, monitor *healthcheck.Monitor) (domain.ProductCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Noop{}, func() {}
	}

	redisCache, err := cache.NewRedisProductCache(cache.RedisOptions{Addr: cfg.RedisAddr, TTL: cfg.RedisTTL})
	if err != nil {
		logger.WithError(err).Warn("redis is unavailable, product cache disabled")
		return cache.Noop{}, func() {}
	}

	logger.WithField("addr", cfg.RedisAddr).Info("redis product cache is ready")
	monitor.Add("redis", healthcheck.NewPingChecker("redis", redisCache))
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			logger.WithError(err).Warn("redis close failed")
		}
	}
}
