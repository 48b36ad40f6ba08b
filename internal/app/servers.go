package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// newGRPCServer собирает gRPC сервер кассы с метриками, reflection и health.
func newGRPCServer(service posv1.PosServiceServer, logger *log.Entry) (*grpc.Server, *grpchealth.Server) {
	serverMetrics := grpcServerMetrics(logger)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(serverMetrics.UnaryServerInterceptor()))

	posv1.RegisterPosServiceServer(server, service)
	serverMetrics.InitializeMetrics(server)
	reflection.Register(server)

	healthSrv := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return server, healthSrv
}

// grpcServerMetrics регистрирует коллектор в глобальном реестре. Повторный Run
// в том же процессе получает уже зарегистрированный экземпляр.
func grpcServerMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	collector := promgrpc.NewServerMetrics()
	err := prometheus.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*promgrpc.ServerMetrics); ok {
			return existing
		}
	}
	logger.WithError(err).Warn("grpc server metrics are not registered")
	return collector
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("graceful stop timed out, forcing grpc stop")
		server.Stop()
	}
}

// opsMux — служебные эндпоинты: метрики, пробы и сведения о сборке.
func opsMux(monitor *healthcheck.Monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", monitor)
	mux.HandleFunc("/livez", healthcheck.Live)
	mux.HandleFunc("/readyz", monitor.Ready)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(version.Build())
	})
	return mux
}

// startMetricsServer поднимает opsMux на addr и гасит его при отмене ctx.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, monitor *healthcheck.Monitor) *http.Server {
	srv := &http.Server{Addr: addr, Handler: opsMux(monitor), ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.WithField("addr", addr).Info("ops endpoints are up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server stopped unexpectedly")
		}
	}()
	context.AfterFunc(ctx, func() { shutdownHTTP(srv, logger) })
	return srv
}

// serveHTTP обслуживает lis в фоне; ошибку, кроме штатной остановки, пишет в лог.
func serveHTTP(srv *http.Server, lis net.Listener, logger *log.Entry) {
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
}

func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http server shutdown failed")
	}
}
