package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	// StorageDriverMemory — хранилище в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres — хранилище PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// MaxNodeID — наибольший номер узла snowflake.
var MaxNodeID = int64(-1 ^ (-1 << snowflake.NodeBits))

// Config описывает настройки запуска кассового сервиса.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr string
	RedisTTL  time.Duration

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers   string
	AlertsEnabled  bool
	AlertsGroupID  string
	AlertsRetries  int
	OutboxTopic    string
	OutboxDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// TaxRate хранится строкой, чтобы Config оставался сравнимым.
	TaxRate               string
	CheckoutRetryAttempts int
	BusinessProfilePath   string

	// NodeID различает экземпляры сервиса в идентификаторах счетов: у каждой
	// реплики с общим хранилищем он свой.
	NodeID int64
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		RedisTTL: 5 * time.Minute,

		AlertsEnabled:  true,
		AlertsGroupID:  "pos-low-stock-alerts",
		AlertsRetries:  3,
		OutboxTopic:    "pos.invoice.events",
		OutboxDLQTopic: "pos.dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		TaxRate:               "0.15",
		CheckoutRetryAttempts: 1,

		NodeID: 1,
	}
}

// Validate проверяет значения, которые нельзя исправить молча.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	if _, err := c.ParsedTaxRate(); err != nil {
		return err
	}
	if c.CheckoutRetryAttempts < 1 {
		return errors.New("checkout retry attempts must be at least 1")
	}
	if c.NodeID < 0 || c.NodeID > MaxNodeID {
		return fmt.Errorf("node id %d is out of range [0, %d]", c.NodeID, MaxNodeID)
	}
	return nil
}

// ParsedTaxRate разбирает ставку налога; пустая строка означает ставку по умолчанию 0.15.
func (c Config) ParsedTaxRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.TaxRate)
	if raw == "" {
		raw = "0.15"
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", c.TaxRate, err)
	}
	if err := domain.ValidateTaxRate(rate); err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", c.TaxRate, err)
	}
	return rate, nil
}

// Brokers возвращает список брокеров без пустых элементов.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
