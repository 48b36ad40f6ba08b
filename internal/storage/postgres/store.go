package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // драйвер "pgx" для database/sql

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	opTimeout = 5 * time.Second
	txTimeout = 10 * time.Second
)

// SQLSTATE-коды, которые различает хранилище.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolConfig — параметры пула соединений database/sql.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
}

// DefaultPoolConfig рассчитан на один экземпляр кассового сервиса.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:     25,
		MaxIdle:     25,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
		PingTimeout: 5 * time.Second,
	}
}

func (p PoolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}

// Store — продажное хранилище поверх PostgreSQL.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// Open подключается к базе с пулом по умолчанию и проверяет, что она отвечает.
func Open(ctx context.Context, dsn string) (*Store, error) {
	return OpenWithPool(ctx, dsn, DefaultPoolConfig())
}

// OpenWithPool — Open с явными параметрами пула.
func OpenWithPool(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pool.apply(db)

	store := &Store{db: db, pingTimeout: pool.PingTimeout}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres is unreachable: %w", err)
	}
	return store, nil
}

// DB отдаёт пул для репозиториев пакета и миграций.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if s.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pingTimeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTx выполняет fn в транзакции. Ошибка fn откатывает её; сбой
// сериализации и дедлок, в том числе на COMMIT, отдаются как domain.ErrStoreConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.SaleTx) error) (err error) {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sale tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&saleTx{tx: tx}); err != nil {
		return asConflict(err)
	}
	if err = tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("commit sale tx: %w", err))
	}
	return nil
}

func asConflict(err error) error {
	if errors.Is(err, domain.ErrStoreConflict) {
		return err
	}
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return fmt.Errorf("%w: %v", domain.ErrStoreConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// sqlState достаёт SQLSTATE из ошибки pgx или пустую строку.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ domain.SaleStore = (*Store)(nil)
