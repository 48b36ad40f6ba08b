// Command migrate применяет, откатывает и показывает миграции схемы PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "POS_POSTGRES_DSN"
)

type direction string

const (
	directionUp     direction = "up"
	directionDown   direction = "down"
	directionStatus direction = "status"
)

// migrator — операции над схемой, которые нужны утилите.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationState(ctx context.Context) (postgres.MigrationState, error)
}

type options struct {
	direction direction
	steps     int
	dsn       string
}

// parseOptions читает флаги; DSN без флага берётся из POS_POSTGRES_DSN.
func parseOptions(args []string, getenv func(string) string) (options, error) {
	var (
		opts options
		dir  string
	)
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&dir, "direction", string(directionUp), "up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "migrations to apply or roll back (up: 0 means all, down: at least 1)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (default $"+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = direction(strings.ToLower(strings.TrimSpace(dir)))
	switch opts.direction {
	case directionUp, directionStatus:
	case directionDown:
		opts.steps = max(opts.steps, 1)
	default:
		return options{}, fmt.Errorf("unsupported direction %q (use up|down|status)", dir)
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(getenv(envPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, errors.New(envPostgresDSN + " (or -dsn) is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := run(ctx, store, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

// run выполняет команду и печатает итоговое состояние схемы.
func run(ctx context.Context, m migrator, opts options, out io.Writer) error {
	switch opts.direction {
	case directionUp:
		if err := m.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case directionDown:
		if err := m.MigrateDown(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case directionStatus:
	default:
		return fmt.Errorf("unsupported direction %q", opts.direction)
	}

	state, err := m.MigrationState(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", opts.direction, state.Version, state.Applied, state.Pending)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
