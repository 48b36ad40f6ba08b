package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// CheckFunc позволяет использовать функцию как Checker.
type CheckFunc func(ctx context.Context) Check

func (f CheckFunc) Check(ctx context.Context) Check { return f(ctx) }

// measure выполняет проверку и заполняет имя и длительность. Ошибка проверки даёт unhealthy.
func measure(ctx context.Context, name string, run func(context.Context) (Status, string, error)) Check {
	start := time.Now()
	status, message, err := run(ctx)
	if err != nil {
		status, message = StatusUnhealthy, err.Error()
	}
	return Check{
		Name:       name,
		Status:     status,
		Message:    message,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// Pinger — зависимость с пингом: Postgres, Redis, in-memory store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker — проверка пингом.
func NewPingChecker(name string, pinger Pinger) Checker {
	return CheckFunc(func(ctx context.Context) Check {
		return measure(ctx, name, func(ctx context.Context) (Status, string, error) {
			return StatusHealthy, "", pinger.Ping(ctx)
		})
	})
}

// OutboxStatsReader — источник статистики outbox.
type OutboxStatsReader interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// NewOutboxBacklogChecker переводит сервис в degraded, когда ожидающих
// сообщений больше maxPending. maxPending <= 0 отключает порог.
func NewOutboxBacklogChecker(stats OutboxStatsReader, maxPending int) Checker {
	return CheckFunc(func(ctx context.Context) Check {
		return measure(ctx, "outbox", func(ctx context.Context) (Status, string, error) {
			current, err := stats.Stats(ctx)
			if err != nil {
				return "", "", err
			}
			if maxPending > 0 && current.PendingCount > maxPending {
				return StatusDegraded, fmt.Sprintf("outbox backlog %d exceeds %d", current.PendingCount, maxPending), nil
			}
			return StatusHealthy, "", nil
		})
	})
}
