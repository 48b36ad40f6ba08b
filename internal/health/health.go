// Package health — проверки зависимостей сервиса для /healthz и /readyz.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy Status = "healthy"
	// StatusDegraded — сервис работает, но что-то требует внимания.
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы для свёртки в общий.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — тело ответа /healthz.
type Report struct {
	Status        Status           `json:"status"`
	CheckedAt     time.Time        `json:"checked_at"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент и обязан уважать ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// Monitor держит зарегистрированные проверки и отдаёт их по HTTP.
type Monitor struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
	timeout  time.Duration
}

func NewMonitor(version string) *Monitor {
	return &Monitor{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
		timeout:  defaultCheckTimeout,
	}
}

// Add регистрирует проверку; повторное имя заменяет прежнюю.
func (m *Monitor) Add(name string, checker Checker) {
	m.mu.Lock()
	m.checkers[name] = checker
	m.mu.Unlock()
}

// Evaluate запускает проверки параллельно под общим таймаутом.
// Общий статус равен худшему из статусов компонентов.
func (m *Monitor) Evaluate(ctx context.Context) (Status, map[string]Check) {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	slices.Sort(names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = m.checkers[name]
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	results := make([]Check, len(names))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checker.Check(ctx)
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	checks := make(map[string]Check, len(names))
	for i, name := range names {
		checks[name] = results[i]
		if results[i].Status.severity() > overall.severity() {
			overall = results[i].Status
		}
	}
	return overall, checks
}

// ServeHTTP отдаёт полный отчёт. 503 только при unhealthy: degraded не снимает трафик.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, checks := m.Evaluate(r.Context())

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Report{
		Status:        status,
		CheckedAt:     time.Now().UTC(),
		Checks:        checks,
		Version:       m.version,
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
	})
}

// Ready — readiness-проба.
func (m *Monitor) Ready(w http.ResponseWriter, r *http.Request) {
	if status, _ := m.Evaluate(r.Context()); status == StatusUnhealthy {
		plain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	plain(w, http.StatusOK, "ready")
}

// Live — liveness-проба: процесс жив, пока отвечает.
func Live(w http.ResponseWriter, _ *http.Request) {
	plain(w, http.StatusOK, "ok")
}

func plain(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
