package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/pos/internal/app"
)

const (
	envGRPCAddr                    = "POS_GRPC_ADDR"
	envHTTPAddr                    = "POS_HTTP_ADDR"
	envMetricsAddr                 = "POS_METRICS_ADDR"
	envStorageDriver               = "POS_STORAGE_DRIVER"
	envPostgresDSN                 = "POS_POSTGRES_DSN"
	envPostgresAutoMigrate         = "POS_POSTGRES_AUTO_MIGRATE"
	envRedisAddr                   = "POS_REDIS_ADDR"
	envRedisTTL                    = "POS_REDIS_TTL"
	envKafkaBrokers                = "POS_KAFKA_BROKERS"
	envAlertsEnabled               = "POS_ALERTS_ENABLED"
	envAlertsGroupID               = "POS_ALERTS_GROUP_ID"
	envOutboxPollInterval          = "POS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "POS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "POS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "POS_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "POS_OUTBOX_MAX_PENDING"
	envIdempotencyCleanupInterval  = "POS_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "POS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envTaxRate                     = "POS_TAX_RATE"
	envCheckoutRetryAttempts       = "POS_CHECKOUT_RETRY_ATTEMPTS"
	envBusinessProfile             = "POS_BUSINESS_PROFILE"
	envNodeID                      = "POS_NODE_ID"
)

type envLookup func(key string) (string, bool)

// envReader читает переменные и копит предупреждения о значениях, которые пришлось отбросить.
type envReader struct {
	lookup   envLookup
	warnings []string
}

func (r *envReader) value(key string) (string, bool) {
	raw, ok := r.lookup(key)
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func (r *envReader) text(key string, dst *string) {
	if raw, ok := r.value(key); ok {
		*dst = raw
	}
}

func (r *envReader) reject(key, raw string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
}

// setting разбирает key через parse; при ошибке dst не меняется.
func setting[T any](r *envReader, key string, dst *T, parse func(string) (T, error)) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := parse(raw)
	if err != nil {
		r.reject(key, raw, err)
		return
	}
	*dst = parsed
}

// atLeast оборачивает parse проверкой нижней границы.
func atLeast[T int | time.Duration](floor T, parse func(string) (T, error)) func(string) (T, error) {
	return func(raw string) (T, error) {
		v, err := parse(raw)
		if err != nil {
			return v, err
		}
		if v < floor {
			return v, fmt.Errorf("must be >= %v", floor)
		}
		return v, nil
	}
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректное значение не роняет запуск: остаётся значение по умолчанию.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	r := &envReader{lookup: lookup}

	r.text(envGRPCAddr, &cfg.GRPCAddr)
	r.text(envHTTPAddr, &cfg.HTTPAddr)
	r.text(envMetricsAddr, &cfg.MetricsAddr)
	r.text(envPostgresDSN, &cfg.PostgresDSN)
	r.text(envRedisAddr, &cfg.RedisAddr)
	r.text(envKafkaBrokers, &cfg.KafkaBrokers)
	r.text(envAlertsGroupID, &cfg.AlertsGroupID)
	r.text(envBusinessProfile, &cfg.BusinessProfilePath)
	if driver, ok := r.value(envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(driver)
	}

	setting(r, envPostgresAutoMigrate, &cfg.PostgresAutoMigrate, parseBool)
	setting(r, envAlertsEnabled, &cfg.AlertsEnabled, parseBool)

	positive := atLeast(1, strconv.Atoi)
	nonNegative := atLeast(0, strconv.Atoi)
	interval := atLeast(time.Nanosecond, time.ParseDuration)
	delay := atLeast(0, time.ParseDuration)

	setting(r, envRedisTTL, &cfg.RedisTTL, interval)
	setting(r, envOutboxPollInterval, &cfg.OutboxPollInterval, interval)
	setting(r, envOutboxBatchSize, &cfg.OutboxBatchSize, positive)
	setting(r, envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive)
	setting(r, envOutboxRetryDelay, &cfg.OutboxRetryDelay, delay)
	setting(r, envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative)
	setting(r, envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, interval)
	setting(r, envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive)
	setting(r, envCheckoutRetryAttempts, &cfg.CheckoutRetryAttempts, positive)

	setting(r, envNodeID, &cfg.NodeID, func(raw string) (int64, error) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, err
		}
		if id < 0 || id > app.MaxNodeID {
			return 0, fmt.Errorf("must be within [0, %d]", app.MaxNodeID)
		}
		return id, nil
	})

	setting(r, envTaxRate, &cfg.TaxRate, func(raw string) (string, error) {
		candidate := cfg
		candidate.TaxRate = raw
		_, err := candidate.ParsedTaxRate()
		return raw, err
	})

	return cfg, r.warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value %q", raw)
}

// loadDotEnv подхватывает .env, если файл есть.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
