package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc/metadata"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
)

const (
	idempotencyHeader = "idempotency-key"
	cashierHeader     = "x-cashier-id"
)

// loadRunner раздаёт сценарии кассирам. Кассир i работает через клиент
// i % len(clients) и шлёт свой x-cashier-id.
type loadRunner struct {
	cfg     config
	clients []posv1.PosServiceClient
	runID   string
	stats   *collector
}

func newLoadRunner(cfg config, clients []posv1.PosServiceClient) *loadRunner {
	return &loadRunner{
		cfg:     cfg,
		clients: clients,
		runID:   fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid()),
		stats:   newCollector(),
	}
}

func (r *loadRunner) run() report {
	startedAt := time.Now()

	jobs := make(chan int, r.cfg.concurrency*2)
	var wg sync.WaitGroup
	for i := range r.cfg.concurrency {
		wg.Add(1)
		go func(client posv1.PosServiceClient, cashier string) {
			defer wg.Done()
			for job := range jobs {
				r.scenario(client, job, cashier)
			}
		}(r.clients[i%len(r.clients)], fmt.Sprintf("%s-%d", r.cfg.cashierID, i))
	}

	feed(jobs, r.cfg)
	wg.Wait()

	return r.stats.report(startedAt, time.Since(startedAt), r.cfg.initialStock)
}

// feed выдаёт номера сценариев до total или до истечения duration и
// закрывает канал.
func feed(jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if !cfg.countMode() {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.countMode() || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func (r *loadRunner) cart() []*posv1.CartLine {
	lines := make([]*posv1.CartLine, len(r.cfg.products))
	for i, id := range r.cfg.products {
		lines[i] = &posv1.CartLine{ProductId: id, Quantity: int32(r.cfg.qty)}
	}
	return lines
}

// scenario проводит одну продажу с уникальным ключом идемпотентности и
// возвращает её исход.
func (r *loadRunner) scenario(client posv1.PosServiceClient, job int, cashier string) (outcome string) {
	start := time.Now()
	var units int64
	defer func() { r.stats.observeScenario(start, outcome, units) }()

	lines := r.cart()
	if r.cfg.mode == modeQuoteCheckout {
		if err := r.quote(client, lines); err != nil {
			return classify(err)
		}
	}

	resp, err := r.finalize(client, lines, fmt.Sprintf("lt-sale-%s-%d", r.runID, job), cashier)
	if err != nil {
		return classify(err)
	}
	if resp.GetInvoice().GetId() == "" {
		return outcomeFailed
	}

	units = int64(r.cfg.qty)
	return outcomeCommitted
}

func (r *loadRunner) quote(client posv1.PosServiceClient, lines []*posv1.CartLine) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.timeout)
	defer cancel()

	start := time.Now()
	_, err := client.QuoteCart(ctx, &posv1.QuoteCartRequest{Lines: lines})
	r.stats.observeCall("QuoteCart", start, err)
	return err
}

func (r *loadRunner) finalize(client posv1.PosServiceClient, lines []*posv1.CartLine, key, cashier string) (*posv1.FinalizeSaleResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key, cashierHeader, cashier)

	start := time.Now()
	resp, err := client.FinalizeSale(ctx, &posv1.FinalizeSaleRequest{Lines: lines})
	r.stats.observeCall("FinalizeSale", start, err)
	return resp, err
}
