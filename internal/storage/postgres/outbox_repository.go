package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Статусы строки outbox_messages.
const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"
)

const defaultOutboxBatch = 100

type outboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
// События продаж попадают в таблицу через SaleTx.EnqueueOutbox, здесь их читает worker.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.DB()}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return insertOutbox(ctx, r.db, msg)
}

// PullPending возвращает до limit pending-сообщений в порядке постановки.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`, outboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer rows.Close()

	var pending []domain.OutboxMessage
	for rows.Next() {
		msg, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return pending, nil
}

func scanOutboxMessage(rows *sql.Rows) (domain.OutboxMessage, error) {
	var msg domain.OutboxMessage
	if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload, &msg.CreatedAt); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("scan outbox message: %w", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

// Stats считает backlog: число pending-сообщений и время самого старого.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = $1`,
		outboxPending,
	).Scan(&stats.PendingCount, &oldest)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("query outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

// MarkSent фиксирует успешную публикацию и её время.
func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.finish(ctx, id, outboxSent, `published_at = NOW(),`)
}

// MarkFailed выводит сообщение из очереди после исчерпания попыток.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.finish(ctx, id, outboxFailed, ``)
}

// finish переводит pending-сообщение в конечный статус; extra дописывается в SET.
func (r *outboxRepository) finish(ctx context.Context, id, status, extra string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2, `+extra+`
		    attempt_count = attempt_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	return expectAffected(res, domain.ErrOutboxPublish)
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
