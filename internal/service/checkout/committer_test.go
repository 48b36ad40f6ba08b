package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

var fixedNow = time.Date(2026, 4, 17, 10, 15, 0, 0, time.UTC)

func TestFinalize_CommitsSale(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithClock(func() time.Time { return fixedNow }))
	oil := seedProduct(t, store, "p-oil", "Aceite 20W50", "150.00", 10)

	cache := &recordingCache{}
	committer, reg := newTestCommitter(t, store, WithProductCache(cache))

	invoice, err := committer.Finalize(ctx, SaleRequest{
		Lines:     []domain.CartLine{line(oil, 3)},
		Customer:  &domain.CustomerSnapshot{ID: "c-1", Name: "Taller Lopez", TaxID: "0801"},
		CashierID: "cashier-1",
	})
	require.NoError(t, err)

	require.Equal(t, "450", invoice.Subtotal.String())
	require.Equal(t, "67.5", invoice.Tax.String())
	require.Equal(t, "517.5", invoice.Total.String())
	require.True(t, invoice.TaxRate.Equal(domain.DefaultTaxRate))
	require.True(t, invoice.CreatedAt.Equal(fixedNow), "timestamp must come from the store")
	require.NotEmpty(t, invoice.ID)
	require.Equal(t, strings.ToUpper(invoice.Number), invoice.Number)
	require.Equal(t, "cashier-1", invoice.CashierID)
	require.Len(t, invoice.Items, 1)

	require.Equal(t, int64(7), stockOf(t, store, oil.ID))

	stored, err := memory.NewInvoiceRepository(store).Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.Number, stored.Number)

	movements, err := memory.NewStockMovementRepository(store).List(ctx, oil.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	sale := movements[1]
	require.Equal(t, domain.StockReasonSale, sale.Reason)
	require.Equal(t, int64(-3), sale.Delta)
	require.Equal(t, int64(7), sale.StockAfter)
	require.Equal(t, invoice.ID, sale.Reference)

	pending, err := memory.NewOutboxRepository(store).PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, string(kafka.EventTypeInvoiceCreated), pending[0].EventType)
	require.Equal(t, invoice.ID, pending[0].AggregateID)

	var event kafka.InvoiceCreatedEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	require.Equal(t, "517.50", event.Total)
	require.Equal(t, invoice.Number, event.Number)

	require.Equal(t, []string{oil.ID}, cache.invalidated)

	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_committed_total", nil))
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "idle", "to": "validating"}))
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "validating", "to": "committing"}))
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "committing", "to": "committed"}))
	require.Equal(t, float64(0), metricValue(t, reg, "pos_sale_in_flight", nil))
}

func TestFinalize_UsesCartPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	filter := seedProduct(t, store, "p-filter", "Filtro", "80.00", 4)
	committer, _ := newTestCommitter(t, store)

	snapshot := line(filter, 2)
	snapshot.UnitPrice = decimal.RequireFromString("75.00")

	invoice, err := committer.Finalize(ctx, SaleRequest{Lines: []domain.CartLine{snapshot}})
	require.NoError(t, err)
	require.Equal(t, "150", invoice.Subtotal.String())
	require.Nil(t, invoice.Customer)
}

func TestFinalize_ShortageLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	oil := seedProduct(t, store, "p-oil", "Aceite", "150", 5)
	belt := seedProduct(t, store, "p-belt", "Faja", "90", 1)
	committer, reg := newTestCommitter(t, store)

	_, err := committer.Finalize(ctx, SaleRequest{
		Lines: []domain.CartLine{line(oil, 2), line(belt, 3)},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	shortage, ok := domain.AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, belt.ID, shortage.ProductID)
	require.Equal(t, "Faja", shortage.ProductName)
	require.Equal(t, int64(3), shortage.Requested)
	require.Equal(t, int64(1), shortage.Available)
	require.Contains(t, err.Error(), "Faja")

	require.Equal(t, int64(5), stockOf(t, store, oil.ID))
	require.Equal(t, int64(1), stockOf(t, store, belt.ID))

	invoices, err := memory.NewInvoiceRepository(store).ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, invoices)

	pending, err := memory.NewOutboxRepository(store).PullPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_aborted_total", map[string]string{"reason": "insufficient_stock"}))
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "validating", "to": "aborted"}))
	require.Zero(t, metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "validating", "to": "committing"}))
	require.Zero(t, metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "committing", "to": "aborted"}))
}

func TestFinalize_RepeatedProductAccumulatesQuantity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	oil := seedProduct(t, store, "p-oil", "Aceite", "150", 5)
	committer, _ := newTestCommitter(t, store)

	_, err := committer.Finalize(ctx, SaleRequest{
		Lines: []domain.CartLine{line(oil, 3), line(oil, 3)},
	})
	shortage, ok := domain.AsInsufficientStock(err)
	require.True(t, ok, "expected shortage, got %v", err)
	require.Equal(t, int64(6), shortage.Requested)
	require.Equal(t, int64(5), shortage.Available)
	require.Equal(t, int64(5), stockOf(t, store, oil.ID))

	invoice, err := committer.Finalize(ctx, SaleRequest{
		Lines: []domain.CartLine{line(oil, 2), line(oil, 3)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), invoice.UnitsSold())
	require.Equal(t, int64(0), stockOf(t, store, oil.ID))

	movements, err := memory.NewStockMovementRepository(store).List(ctx, oil.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(-5), movements[0].Delta)
}

func TestFinalize_UnknownProductCountsAsEmptyStock(t *testing.T) {
	store := memory.NewStore()
	committer, _ := newTestCommitter(t, store)

	_, err := committer.Finalize(context.Background(), SaleRequest{
		Lines: []domain.CartLine{{ProductID: "ghost", Name: "Bujia", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
	})
	shortage, ok := domain.AsInsufficientStock(err)
	require.True(t, ok, "expected shortage, got %v", err)
	require.Equal(t, "Bujia", shortage.ProductName)
	require.Equal(t, int64(0), shortage.Available)
}

func TestFinalize_InputErrorsDoNotTouchStore(t *testing.T) {
	negativeRate := decimal.RequireFromString("-0.01")
	preciseRate := decimal.RequireFromString("0.12345")
	valid := domain.CartLine{ProductID: "p-1", Name: "x", UnitPrice: decimal.NewFromInt(1), Quantity: 1}

	tests := []struct {
		name string
		req  SaleRequest
		want error
	}{
		{name: "empty cart", req: SaleRequest{}, want: domain.ErrEmptyCart},
		{
			name: "zero quantity",
			req:  SaleRequest{Lines: []domain.CartLine{{ProductID: "p-1", UnitPrice: decimal.NewFromInt(1)}}},
			want: domain.ErrQuantityInvalid,
		},
		{
			name: "negative price",
			req:  SaleRequest{Lines: []domain.CartLine{{ProductID: "p-1", UnitPrice: decimal.NewFromInt(-1), Quantity: 1}}},
			want: domain.ErrPriceInvalid,
		},
		{
			name: "missing product id",
			req:  SaleRequest{Lines: []domain.CartLine{{UnitPrice: decimal.NewFromInt(1), Quantity: 1}}},
			want: domain.ErrProductIDRequired,
		},
		{
			name: "negative tax rate",
			req:  SaleRequest{Lines: []domain.CartLine{valid}, TaxRate: &negativeRate},
			want: domain.ErrTaxRateInvalid,
		},
		{
			name: "tax rate beyond stored precision",
			req:  SaleRequest{Lines: []domain.CartLine{valid}, TaxRate: &preciseRate},
			want: domain.ErrTaxRatePrecision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{}
			committer, reg := newTestCommitter(t, store)

			_, err := committer.Finalize(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			require.True(t, domain.IsInputError(err))
			require.Zero(t, store.calls)
			require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_aborted_total", map[string]string{"reason": "invalid_input"}))
		})
	}
}

func TestFinalize_StoreConflict(t *testing.T) {
	store := &failingStore{err: domain.ErrStoreConflict}
	committer, reg := newTestCommitter(t, store)

	_, err := committer.Finalize(context.Background(), SaleRequest{
		Lines: []domain.CartLine{{ProductID: "p-1", Name: "x", UnitPrice: decimal.NewFromInt(1), Quantity: 1}},
	})
	require.True(t, domain.IsStoreConflict(err))
	require.Equal(t, 1, store.calls)
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_aborted_total", map[string]string{"reason": "store_conflict"}))
	// Транзакция не дошла до проверки остатков.
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "validating", "to": "aborted"}))
	require.Zero(t, metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": "validating", "to": "committing"}))
}

func TestFinalize_CommitConflictAbortsFromCommitting(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	oil := seedProduct(t, inner, "p-oil", "Aceite", "150", 5)
	committer, reg := newTestCommitter(t, commitConflictStore{inner: inner})

	_, err := committer.Finalize(ctx, SaleRequest{Lines: []domain.CartLine{line(oil, 2)}})
	require.True(t, domain.IsStoreConflict(err))
	require.Equal(t, int64(5), stockOf(t, inner, oil.ID))

	transitions := func(from, to string) float64 {
		return metricValue(t, reg, "pos_sale_state_transitions_total", map[string]string{"from": from, "to": to})
	}
	require.Equal(t, float64(1), transitions("validating", "committing"))
	require.Equal(t, float64(1), transitions("committing", "aborted"))
	require.Zero(t, transitions("validating", "aborted"))
}

func TestFinalize_StoreErrorIsReturned(t *testing.T) {
	boom := errors.New("disk on fire")
	committer, reg := newTestCommitter(t, &failingStore{err: boom})

	_, err := committer.Finalize(context.Background(), SaleRequest{
		Lines: []domain.CartLine{{ProductID: "p-1", Name: "x", UnitPrice: decimal.NewFromInt(1), Quantity: 1}},
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, float64(1), metricValue(t, reg, "pos_sale_aborted_total", map[string]string{"reason": "error"}))
}

func TestFinalize_ConcurrentSalesForLastUnit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	battery := seedProduct(t, store, "p-battery", "Bateria", "1800", 1)
	committer, _ := newTestCommitter(t, store)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		shortages int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := committer.Finalize(ctx, SaleRequest{Lines: []domain.CartLine{line(battery, 1)}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, buyers-1, shortages)
	require.Equal(t, int64(0), stockOf(t, store, battery.ID))

	invoices, err := memory.NewInvoiceRepository(store).ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
}

func TestFinalize_UniqueInvoiceNumbers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	oil := seedProduct(t, store, "p-oil", "Aceite", "150", 50)
	committer, _ := newTestCommitter(t, store)

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		invoice, err := committer.Finalize(ctx, SaleRequest{Lines: []domain.CartLine{line(oil, 1)}})
		require.NoError(t, err)
		_, dup := seen[invoice.Number]
		require.False(t, dup, "duplicate invoice number %s", invoice.Number)
		seen[invoice.Number] = struct{}{}
	}
}

func TestQuote(t *testing.T) {
	committer, _ := newTestCommitter(t, &failingStore{})

	totals, err := committer.Quote([]domain.CartLine{
		{ProductID: "a", UnitPrice: decimal.RequireFromString("100"), Quantity: 2},
		{ProductID: "b", UnitPrice: decimal.RequireFromString("250"), Quantity: 1},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "450", totals.Subtotal.String())
	require.Equal(t, "67.5", totals.Tax.String())
	require.Equal(t, "517.5", totals.Total.String())

	zero := decimal.Zero
	totals, err = committer.Quote([]domain.CartLine{{ProductID: "a", UnitPrice: decimal.RequireFromString("10"), Quantity: 1}}, &zero)
	require.NoError(t, err)
	require.True(t, totals.Tax.IsZero())

	_, err = committer.Quote(nil, nil)
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestNewCommitterValidation(t *testing.T) {
	_, err := NewCommitter(nil)
	require.Error(t, err)

	_, err = NewCommitter(&failingStore{}, WithTaxRate(decimal.RequireFromString("-1")))
	require.ErrorIs(t, err, domain.ErrTaxRateInvalid)

	_, err = NewCommitter(&failingStore{}, WithTaxRate(decimal.RequireFromString("0.15005")))
	require.ErrorIs(t, err, domain.ErrTaxRatePrecision)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.SaleState
		want     bool
	}{
		{domain.SaleStateIdle, domain.SaleStateValidating, true},
		{domain.SaleStateIdle, domain.SaleStateCommitting, false},
		{domain.SaleStateValidating, domain.SaleStateAborted, true},
		{domain.SaleStateValidating, domain.SaleStateCommitted, false},
		{domain.SaleStateCommitting, domain.SaleStateCommitted, true},
		{domain.SaleStateCommitted, domain.SaleStateAborted, false},
		{domain.SaleStateAborted, domain.SaleStateIdle, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
