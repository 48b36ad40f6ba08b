package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	updatedAt  time.Time
}

type outboxRepositoryInMemory struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory outbox поверх Store.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepositoryInMemory{store: store}
}

func prepareOutboxMessage(msg domain.OutboxMessage, now time.Time) domain.OutboxMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.Payload = append([]byte(nil), msg.Payload...)
	return msg
}

// putOutbox сохраняет сообщение со статусом pending. Вызывается под s.mu.
func (s *Store) putOutbox(msg domain.OutboxMessage) {
	if _, exists := s.outbox[msg.ID]; !exists {
		s.outboxOrder = append(s.outboxOrder, msg.ID)
	}
	s.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		updatedAt: msg.CreatedAt,
	}
}

// Enqueue сохраняет событие вне продажи (например, корректировка остатка).
func (r *outboxRepositoryInMemory) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	msg = prepareOutboxMessage(msg, s.now())
	s.putOutbox(msg)
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке постановки.
func (r *outboxRepositoryInMemory) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		rec := s.outbox[id]
		if rec.status != outboxStatusPending {
			continue
		}
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *outboxRepositoryInMemory) Stats(_ context.Context) (domain.OutboxStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.OutboxStats
	for _, id := range s.outboxOrder {
		rec := s.outbox[id]
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.msg.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.msg.CreatedAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, outboxStatusFailed)
}

func (r *outboxRepositoryInMemory) markStatus(id, status string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = s.now()
	return nil
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
