package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func newTestCommitter(t *testing.T, store domain.SaleStore, opts ...Option) (*Committer, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	opts = append([]Option{WithMetrics(metrics.NewSaleMetricsWithRegisterer(reg))}, opts...)
	committer, err := NewCommitter(store, opts...)
	require.NoError(t, err)
	return committer, reg
}

func seedProduct(t *testing.T, store *memory.Store, id, name, price string, stock int64) domain.Product {
	t.Helper()

	product := domain.Product{
		ID:        id,
		Name:      name,
		SalePrice: decimal.RequireFromString(price),
		CostPrice: decimal.Zero,
		Stock:     stock,
	}
	require.NoError(t, memory.NewProductRepository(store).Create(context.Background(), product))
	return product
}

func line(p domain.Product, qty int32) domain.CartLine {
	snapshot := p.Snapshot()
	snapshot.Quantity = qty
	return snapshot
}

func stockOf(t *testing.T, store *memory.Store, id string) int64 {
	t.Helper()
	product, err := memory.NewProductRepository(store).Get(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric.GetLabel(), labels) {
				continue
			}
			if counter := metric.GetCounter(); counter != nil {
				return counter.GetValue()
			}
			if gauge := metric.GetGauge(); gauge != nil {
				return gauge.GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(want) != len(pairs) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

// recordingCache запоминает сброшенные ключи.
type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string) (domain.Product, bool, error) {
	return domain.Product{}, false, nil
}

func (c *recordingCache) Set(context.Context, domain.Product) error {
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

// failingStore возвращает заданную ошибку и считает вызовы.
type failingStore struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *failingStore) RunInTx(context.Context, func(domain.SaleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

// commitConflictStore выполняет транзакцию на вложенном хранилище, но вместо
// фиксации откатывает её и сообщает о конфликте.
type commitConflictStore struct {
	inner domain.SaleStore
}

func (s commitConflictStore) RunInTx(ctx context.Context, fn func(domain.SaleTx) error) error {
	return s.inner.RunInTx(ctx, func(tx domain.SaleTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return domain.ErrStoreConflict
	})
}
