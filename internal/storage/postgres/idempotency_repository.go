package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyRepository хранит ключи в idempotency_keys. Истёкший ключ
// занимается заново тем же INSERT, живой возвращает ErrIdempotencyKeyAlreadyExists.
type idempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.DB(), now: time.Now}
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}
	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var claimed string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO idempotency_keys AS k (key, request_hash, status, ttl_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (key) DO UPDATE
		SET request_hash  = EXCLUDED.request_hash,
		    response_body = NULL,
		    http_status   = 0,
		    status        = EXCLUDED.status,
		    ttl_at        = EXCLUDED.ttl_at,
		    created_at    = EXCLUDED.created_at,
		    updated_at    = EXCLUDED.updated_at
		WHERE k.ttl_at <= EXCLUDED.created_at
		RETURNING key
	`, key, requestHash, string(record.Status), ttlAt, now).Scan(&claimed)
	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, sql.ErrNoRows):
		return r.existing(ctx, key, requestHash)
	default:
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
}

// existing описывает конфликт с живым ключом: тот же запрос или другой.
func (r *idempotencyRepository) existing(ctx context.Context, key, requestHash string) (domain.IdempotencyRecord, error) {
	record, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	if record.RequestHash != requestHash {
		return record, domain.ErrIdempotencyHashMismatch
	}
	return record, domain.ErrIdempotencyKeyAlreadyExists
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at
		FROM idempotency_keys
		WHERE key = $1
	`, key)

	record, err := scanIdempotencyRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return record, err
}

func scanIdempotencyRecord(row *sql.Row) (domain.IdempotencyRecord, error) {
	var (
		record     domain.IdempotencyRecord
		status     string
		body       []byte
		httpStatus sql.NullInt64
	)
	if err := row.Scan(&record.Key, &record.RequestHash, &body, &httpStatus, &status, &record.TTLAt, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, err
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", status, record.Key)
	}
	if len(body) > 0 {
		record.ResponseBody = append([]byte(nil), body...)
	}
	record.HTTPStatus = int(httpStatus.Int64)
	return record, nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// complete сохраняет итог обработки ключа вместе с ответом.
func (r *idempotencyRepository) complete(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $2, http_status = $3, status = $4, updated_at = NOW()
		WHERE key = $1
	`, key, responseBody, httpStatus, string(status))
	if err != nil {
		return fmt.Errorf("mark idempotency key %s as %s: %w", key, status, err)
	}
	return expectAffected(res, domain.ErrIdempotencyKeyNotFound)
}

// DeleteExpired удаляет до limit ключей с ttl_at <= before, самые старые первыми.
// limit <= 0 снимает ограничение.
func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now().UTC()
	}
	var batch sql.NullInt64
	if limit > 0 {
		batch = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE key IN (
			SELECT key FROM idempotency_keys
			WHERE ttl_at <= $1
			ORDER BY ttl_at
			LIMIT $2
		)
	`, before, batch)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted idempotency records: %w", err)
	}
	return int(deleted), nil
}

func normalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
