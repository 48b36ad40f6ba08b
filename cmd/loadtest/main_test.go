package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/pos/internal/service/grpc"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type fakePosServiceClient struct {
	finalizeFn func(context.Context, *posv1.FinalizeSaleRequest, ...grpc.CallOption) (*posv1.FinalizeSaleResponse, error)
	quoteFn    func(context.Context, *posv1.QuoteCartRequest, ...grpc.CallOption) (*posv1.QuoteCartResponse, error)
}

func (f *fakePosServiceClient) FinalizeSale(ctx context.Context, req *posv1.FinalizeSaleRequest, opts ...grpc.CallOption) (*posv1.FinalizeSaleResponse, error) {
	if f.finalizeFn == nil {
		return nil, status.Error(codes.Unimplemented, "unexpected FinalizeSale call")
	}
	return f.finalizeFn(ctx, req, opts...)
}

func (f *fakePosServiceClient) QuoteCart(ctx context.Context, req *posv1.QuoteCartRequest, opts ...grpc.CallOption) (*posv1.QuoteCartResponse, error) {
	if f.quoteFn == nil {
		return nil, status.Error(codes.Unimplemented, "unexpected QuoteCart call")
	}
	return f.quoteFn(ctx, req, opts...)
}

func (f *fakePosServiceClient) GetInvoice(context.Context, *posv1.GetInvoiceRequest, ...grpc.CallOption) (*posv1.GetInvoiceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "unexpected GetInvoice call")
}

func (f *fakePosServiceClient) ListInvoices(context.Context, *posv1.ListInvoicesRequest, ...grpc.CallOption) (*posv1.ListInvoicesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "unexpected ListInvoices call")
}

var _ posv1.PosServiceClient = (*fakePosServiceClient)(nil)

func TestParseMode(t *testing.T) {
	for _, value := range []string{"checkout", " quote-checkout "} {
		_, err := parseMode(value)
		require.NoError(t, err, value)
	}
	_, err := parseMode("refund")
	require.ErrorContains(t, err, "unsupported mode")
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-products=p-1, p-2", "-qty=2", "-initial-stock=10", "-duration=1m", "-total=50"})
	require.NoError(t, err)
	require.Equal(t, []string{"p-1", "p-2"}, cfg.products)
	require.Equal(t, 2, cfg.qty)
	require.Equal(t, 10, cfg.initialStock)
	require.Equal(t, modeCheckout, cfg.mode)
	require.True(t, cfg.totalSet)
	require.Equal(t, "duration:1m0s,max-total:50", cfg.target())
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "products required", args: nil, wantErr: "products is required"},
		{name: "bad timeout", args: []string{"-products=p-1", "-timeout=soon"}, wantErr: "parse timeout"},
		{name: "bad duration", args: []string{"-products=p-1", "-duration=later"}, wantErr: "parse duration"},
		{name: "bad mode", args: []string{"-products=p-1", "-mode=refund"}, wantErr: "unsupported mode"},
		{name: "zero qty", args: []string{"-products=p-1", "-qty=0"}, wantErr: "qty must be > 0"},
		{name: "zero concurrency", args: []string{"-products=p-1", "-concurrency=0"}, wantErr: "concurrency must be > 0"},
		{name: "zero connections", args: []string{"-products=p-1", "-connections=0"}, wantErr: "connections must be > 0"},
		{name: "negative stock", args: []string{"-products=p-1", "-initial-stock=-1"}, wantErr: "initial-stock"},
		{name: "empty cashier", args: []string{"-products=p-1", "-cashier= "}, wantErr: "cashier is required"},
		{name: "count without total", args: []string{"-products=p-1", "-total=0"}, wantErr: "duration is not set"},
		{name: "duration with zero total", args: []string{"-products=p-1", "-duration=1s", "-total=0"}, wantErr: "explicitly set"},
		{name: "unknown flag", args: []string{"-products=p-1", "-verbose"}, wantErr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigTarget(t *testing.T) {
	require.Equal(t, "count:7", config{total: 7}.target())
	require.Equal(t, "duration:1m0s", config{duration: time.Minute}.target())
}

func TestFeed(t *testing.T) {
	drain := func(cfg config) []int {
		jobs := make(chan int, 16)
		feed(jobs, cfg)
		var got []int
		for job := range jobs {
			got = append(got, job)
		}
		return got
	}

	require.Equal(t, []int{0, 1, 2, 3, 4}, drain(config{total: 5}))
	require.Len(t, drain(config{total: 3, totalSet: true, duration: time.Second}), 3)

	// Без явного total продолжительность ограничивает только время.
	jobs := make(chan int)
	done := make(chan struct{})
	go func() {
		feed(jobs, config{total: 1, duration: 30 * time.Millisecond})
		close(done)
	}()
	var n int
	for range jobs {
		n++
	}
	<-done
	require.Greater(t, n, 1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: outcomeCommitted},
		{err: status.Error(codes.FailedPrecondition, "insufficient stock for Filtro"), want: outcomeInsufficient},
		{err: status.Error(codes.Aborted, "conflict"), want: outcomeConflict},
		{err: status.Error(codes.Unavailable, "down"), want: outcomeFailed},
		{err: context.DeadlineExceeded, want: outcomeFailed},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, classify(tt.err), "%v", tt.err)
	}
}

func TestSamplesSummary(t *testing.T) {
	require.Equal(t, latencySummary{}, samples(nil).summary())

	s := samples{30, 10, 20, 40}
	sum := s.summary()
	require.Equal(t, 10.0, sum.Min)
	require.Equal(t, 40.0, sum.Max)
	require.Equal(t, 25.0, sum.Avg)
	require.Equal(t, 25.0, sum.P50)
	require.InDelta(t, 38.5, sum.P95, 1e-9)

	require.Equal(t, 7.0, percentile([]float64{7}, 99))
	require.Equal(t, 2.0, percentile([]float64{1, 2, 3}, 50))
}

func TestCollectorReport(t *testing.T) {
	col := newCollector()
	now := time.Now()
	col.observeCall("FinalizeSale", now, nil)
	col.observeCall("FinalizeSale", now, status.Error(codes.FailedPrecondition, "insufficient stock"))
	col.observeScenario(now, outcomeCommitted, 2)
	col.observeScenario(now, outcomeInsufficient, 0)
	col.observeScenario(now, outcomeFailed, 0)

	r := col.report(now, time.Second, 1)
	require.Equal(t, int64(3), r.TotalScenarios)
	require.Equal(t, int64(2), r.UnitsSold)
	require.Equal(t, map[string]int64{outcomeCommitted: 1, outcomeInsufficient: 1, outcomeFailed: 1}, r.Outcomes)
	require.True(t, r.Oversold, "2 units sold from stock 1")
	require.Equal(t, 3.0, r.RPS)
	require.InDelta(t, 1.0/3, r.ErrorRate, 1e-9)

	m := r.Methods["FinalizeSale"]
	require.Equal(t, int64(2), m.Calls)
	require.Equal(t, int64(1), m.Failed)
	require.Equal(t, 0.5, m.ErrorRate)
	require.Equal(t, map[string]int64{"OK": 1, "FailedPrecondition": 1}, m.Codes)

	require.False(t, col.report(now, 0, 0).Oversold, "check disabled without initial stock")
	require.Zero(t, ratio(1, 0))
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeJSONReport(path, report{TotalScenarios: 4, Outcomes: map[string]int64{outcomeCommitted: 4}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, int64(4), decoded.Outcomes[outcomeCommitted])

	require.Error(t, writeJSONReport(".", report{}))
	require.Error(t, writeJSONReport("../outside.json", report{}))
}

func testRunner(cfg config, client posv1.PosServiceClient) *loadRunner {
	r := newLoadRunner(cfg, []posv1.PosServiceClient{client})
	r.runID = "run"
	return r
}

func TestScenario_SendsMetadataAndCountsUnits(t *testing.T) {
	var quotes int32
	client := &fakePosServiceClient{
		quoteFn: func(_ context.Context, req *posv1.QuoteCartRequest, _ ...grpc.CallOption) (*posv1.QuoteCartResponse, error) {
			atomic.AddInt32(&quotes, 1)
			require.Len(t, req.Lines, 1)
			return &posv1.QuoteCartResponse{Total: "115.00"}, nil
		},
		finalizeFn: func(ctx context.Context, req *posv1.FinalizeSaleRequest, _ ...grpc.CallOption) (*posv1.FinalizeSaleResponse, error) {
			md, ok := metadata.FromOutgoingContext(ctx)
			require.True(t, ok)
			require.Equal(t, []string{"lt-sale-run-7"}, md.Get(idempotencyHeader))
			require.Equal(t, []string{"cajero-1"}, md.Get(cashierHeader))
			require.Equal(t, "p-1", req.Lines[0].ProductId)
			require.Equal(t, int32(3), req.Lines[0].Quantity)
			return &posv1.FinalizeSaleResponse{Invoice: &posv1.Invoice{Id: "inv-1"}}, nil
		},
	}

	r := testRunner(config{mode: modeQuoteCheckout, products: []string{"p-1"}, qty: 3, timeout: time.Second}, client)

	require.Equal(t, outcomeCommitted, r.scenario(client, 7, "cajero-1"))
	require.Equal(t, int32(1), atomic.LoadInt32(&quotes))

	result := r.stats.report(time.Now(), time.Second, 0)
	require.Equal(t, int64(3), result.UnitsSold)
	require.Equal(t, int64(1), result.Methods["QuoteCart"].Calls)
	require.Equal(t, int64(1), result.Methods["FinalizeSale"].Success)
}

func TestScenario_QuoteFailureSkipsSale(t *testing.T) {
	client := &fakePosServiceClient{
		quoteFn: func(context.Context, *posv1.QuoteCartRequest, ...grpc.CallOption) (*posv1.QuoteCartResponse, error) {
			return nil, status.Error(codes.InvalidArgument, "quantity must be greater than zero")
		},
	}
	r := testRunner(config{mode: modeQuoteCheckout, products: []string{"p-1"}, qty: 1, timeout: time.Second}, client)

	require.Equal(t, outcomeFailed, r.scenario(client, 1, "cajero-1"))
	require.NotContains(t, r.stats.report(time.Now(), time.Second, 0).Methods, "FinalizeSale")
}

func TestScenario_EmptyInvoiceIsFailure(t *testing.T) {
	client := &fakePosServiceClient{
		finalizeFn: func(context.Context, *posv1.FinalizeSaleRequest, ...grpc.CallOption) (*posv1.FinalizeSaleResponse, error) {
			return &posv1.FinalizeSaleResponse{}, nil
		},
	}
	r := testRunner(config{mode: modeCheckout, products: []string{"p-1"}, qty: 1, timeout: time.Second}, client)

	require.Equal(t, outcomeFailed, r.scenario(client, 1, "cajero-1"))
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, report{
		TotalScenarios: 2,
		Outcomes:       map[string]int64{outcomeCommitted: 1, outcomeInsufficient: 1},
		UnitsSold:      1,
		Methods:        map[string]methodReport{"FinalizeSale": {Calls: 2, Success: 1, Failed: 1}},
	}, config{mode: modeCheckout, total: 2, products: []string{"p-1"}, qty: 1, initialStock: 1})

	text := out.String()
	require.Contains(t, text, "committed=1 insufficient_stock=1 conflict=0 failed=0 units_sold=1")
	require.Contains(t, text, "initial_stock=1 oversold=false")
	require.Contains(t, text, "FinalizeSale: calls=2 success=1 failed=1")
}

func TestLoadRunner_ContentionNeverOversells(t *testing.T) {
	listener := bufconn.Listen(1024 * 1024)
	store := memory.NewStore()
	logger := log.New().WithField("component", "loadtest-test")
	saleMetrics := metrics.NewSaleMetricsWithRegisterer(prometheus.NewRegistry())

	require.NoError(t, memory.NewProductRepository(store).Create(context.Background(), domain.Product{
		ID:        "p-last",
		Name:      "Bujía",
		SalePrice: decimal.RequireFromString("100.00"),
		Stock:     5,
	}))

	catalogSvc, err := catalog.NewService(catalog.Repositories{
		Products:  memory.NewProductRepository(store),
		Movements: memory.NewStockMovementRepository(store),
		Customers: memory.NewCustomerRepository(store),
		Expenses:  memory.NewExpenseRepository(store),
		Store:     store,
	}, catalog.WithMetrics(saleMetrics), catalog.WithLogger(logger))
	require.NoError(t, err)
	committer, err := checkout.NewCommitter(store, checkout.WithMetrics(saleMetrics), checkout.WithLogger(logger))
	require.NoError(t, err)

	server := grpc.NewServer()
	posv1.RegisterPosServiceServer(server, grpcsvc.NewPosService(grpcsvc.Dependencies{
		Finalizer:   committer,
		Quoter:      committer,
		Products:    catalogSvc,
		Customers:   catalogSvc,
		Invoices:    memory.NewInvoiceRepository(store),
		Idempotency: memory.NewIdempotencyRepository(),
	}, logger))
	go func() { _ = server.Serve(listener) }()
	defer server.Stop()

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	cfg := config{
		total:        20,
		concurrency:  8,
		timeout:      5 * time.Second,
		mode:         modeCheckout,
		products:     []string{"p-last"},
		qty:          1,
		cashierID:    "cajero",
		initialStock: 5,
	}
	result := newLoadRunner(cfg, []posv1.PosServiceClient{posv1.NewPosServiceClient(conn)}).run()

	require.Equal(t, int64(20), result.TotalScenarios)
	require.Equal(t, int64(5), result.Outcomes[outcomeCommitted])
	require.Equal(t, int64(15), result.Outcomes[outcomeInsufficient])
	require.Zero(t, result.Outcomes[outcomeFailed])
	require.False(t, result.Oversold)

	product, err := memory.NewProductRepository(store).Get(context.Background(), "p-last")
	require.NoError(t, err)
	require.Zero(t, product.Stock)
}
