package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultKeyPrefix = "pos:product:"
	defaultTTL       = 5 * time.Minute
	pingTimeout      = 5 * time.Second
)

// cachedProduct — представление товара в Redis.
type cachedProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Category  string          `json:"category,omitempty"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int64           `json:"stock"`
	MinStock  *int64          `json:"min_stock,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RedisProductCache хранит карточки товаров в Redis с TTL.
type RedisProductCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Entry
}

// RedisOptions — параметры подключения.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisProductCache подключается к Redis и проверяет соединение.
func NewRedisProductCache(opts RedisOptions) (*RedisProductCache, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProductCacheFromClient(client, opts.TTL), nil
}

// NewRedisProductCacheFromClient использует уже созданный клиент.
func NewRedisProductCacheFromClient(client *redis.Client, ttl time.Duration) *RedisProductCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisProductCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		logger: log.WithField("component", "product-cache"),
	}
}

func (c *RedisProductCache) key(id string) string {
	return c.prefix + id
}

// Get возвращает товар из кэша; при промахе (Product{}, false, nil).
func (c *RedisProductCache) Get(ctx context.Context, id string) (domain.Product, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("redis get product %s: %w", id, err)
	}

	product, err := decodeProduct(raw)
	if err != nil {
		// Битую запись удаляем, следующий Get прочитает товар из хранилища.
		c.logger.WithError(err).WithField("product_id", id).Warn("dropping malformed cache entry")
		_ = c.client.Del(ctx, c.key(id)).Err()
		return domain.Product{}, false, nil
	}
	return product, true, nil
}

// Set кладёт товар в кэш на ttl.
func (c *RedisProductCache) Set(ctx context.Context, product domain.Product) error {
	raw, err := encodeProduct(product)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(product.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product %s: %w", product.ID, err)
	}
	return nil
}

// Invalidate удаляет товары из кэша.
func (c *RedisProductCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate products: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis для health-check.
func (c *RedisProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close закрывает соединение.
func (c *RedisProductCache) Close() error {
	return c.client.Close()
}

func encodeProduct(p domain.Product) ([]byte, error) {
	raw, err := json.Marshal(cachedProduct{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Category:  p.Category,
		CostPrice: p.CostPrice,
		SalePrice: p.SalePrice,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	return raw, nil
}

func decodeProduct(raw []byte) (domain.Product, error) {
	var cp cachedProduct
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Product{}, fmt.Errorf("decode cached product: %w", err)
	}
	return domain.Product{
		ID:        cp.ID,
		Name:      cp.Name,
		SKU:       cp.SKU,
		Category:  cp.Category,
		CostPrice: cp.CostPrice,
		SalePrice: cp.SalePrice,
		Stock:     cp.Stock,
		MinStock:  cp.MinStock,
		CreatedAt: cp.CreatedAt,
		UpdatedAt: cp.UpdatedAt,
	}, nil
}

var _ domain.ProductCache = (*RedisProductCache)(nil)
