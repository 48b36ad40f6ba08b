package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyKeys живёт отдельно от Store: ключи не участвуют в транзакциях продажи.
type idempotencyKeys struct {
	mu      sync.RWMutex
	now     func() time.Time
	records map[string]*domain.IdempotencyRecord
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyKeys{
		now:     func() time.Time { return time.Now().UTC() },
		records: make(map[string]*domain.IdempotencyRecord),
	}
}

func (k *idempotencyKeys) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := idempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := k.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Истёкший ключ можно занять повторно.
	if current, ok := k.records[key]; ok && !current.Expired(now) {
		if current.RequestHash != requestHash {
			return copyRecord(current), domain.ErrIdempotencyHashMismatch
		}
		return copyRecord(current), domain.ErrIdempotencyKeyAlreadyExists
	}

	record := &domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	k.records[key] = record
	return copyRecord(record), nil
}

func (k *idempotencyKeys) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := idempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	record, ok := k.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(record), nil
}

func (k *idempotencyKeys) MarkDone(_ context.Context, key string, responseBody []byte, httpStatus int) error {
	return k.complete(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (k *idempotencyKeys) MarkFailed(_ context.Context, key string, responseBody []byte, httpStatus int) error {
	return k.complete(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (k *idempotencyKeys) complete(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := idempotencyKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	record, ok := k.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = slices.Clone(responseBody)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = k.now()
	return nil
}

// DeleteExpired удаляет до limit записей с TTL <= before, самые старые первыми.
func (k *idempotencyKeys) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = k.now()
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var expired []*domain.IdempotencyRecord
	for _, record := range k.records {
		if record.Expired(before) {
			expired = append(expired, record)
		}
	}
	slices.SortFunc(expired, func(a, b *domain.IdempotencyRecord) int {
		return a.TTLAt.Compare(b.TTLAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, record := range expired {
		delete(k.records, record.Key)
	}
	return len(expired), nil
}

func idempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

func copyRecord(src *domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := *src
	dst.ResponseBody = slices.Clone(src.ResponseBody)
	return dst
}

var _ domain.IdempotencyRepository = (*idempotencyKeys)(nil)
