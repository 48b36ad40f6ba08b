package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"strings"
	"time"
)

type loadMode string

const (
	// modeCheckout — каждый сценарий проводит одну продажу.
	modeCheckout loadMode = "checkout"
	// modeQuoteCheckout — сначала предпросмотр корзины, затем продажа.
	modeQuoteCheckout loadMode = "quote-checkout"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	products    []string
	qty         int
	cashierID   string
	// initialStock > 0 включает проверку перепродажи по итогам прогона.
	initialStock int
	outputPath   string
}

// countMode сообщает, ограничен ли прогон числом сценариев, а не временем.
func (c config) countMode() bool { return c.duration <= 0 }

func (c config) target() string {
	switch {
	case c.countMode():
		return fmt.Sprintf("count:%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", c.duration, c.total)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}

func parseConfig(args []string) (config, error) {
	var (
		cfg               config
		mode, products    string
		timeout, duration string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "pos-service gRPC address")
	fs.IntVar(&cfg.total, "total", 400, "sales to attempt; with -duration acts as an upper bound only when set")
	fs.StringVar(&duration, "duration", "0s", "run for this long instead of a fixed count (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "concurrent cashiers")
	fs.IntVar(&cfg.connections, "connections", 20, "gRPC client connections shared by cashiers")
	fs.StringVar(&timeout, "timeout", "5s", "per-RPC timeout")
	fs.StringVar(&mode, "mode", string(modeCheckout), "checkout | quote-checkout")
	fs.StringVar(&products, "products", "", "comma-separated product ids put in every cart (required)")
	fs.IntVar(&cfg.qty, "qty", 1, "quantity of each product per cart")
	fs.StringVar(&cfg.cashierID, "cashier", "loadtest", "cashier id prefix")
	fs.IntVar(&cfg.initialStock, "initial-stock", 0, "stock of the contended product before the run")
	fs.StringVar(&cfg.outputPath, "output", "", "write the JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.totalSet = cfg.totalSet || f.Name == "total" })

	var err error
	if cfg.timeout, err = time.ParseDuration(strings.TrimSpace(timeout)); err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	if cfg.duration, err = time.ParseDuration(strings.TrimSpace(duration)); err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	if cfg.mode, err = parseMode(mode); err != nil {
		return cfg, err
	}
	cfg.products = splitList(products)

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.countMode() && c.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case !c.countMode() && c.totalSet && c.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.connections <= 0:
		return errors.New("connections must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case len(c.products) == 0:
		return errors.New("products is required")
	case c.qty <= 0 || c.qty > math.MaxInt32:
		return errors.New("qty must be > 0")
	case c.initialStock < 0:
		return errors.New("initial-stock must be >= 0")
	case strings.TrimSpace(c.cashierID) == "":
		return errors.New("cashier is required")
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	switch m := loadMode(strings.TrimSpace(value)); m {
	case modeCheckout, modeQuoteCheckout:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
