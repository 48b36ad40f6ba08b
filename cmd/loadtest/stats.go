package main

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Исходы сценария. Отказ по остатку и конфликт под нагрузкой ожидаемы и
// ошибкой не считаются.
const (
	outcomeCommitted    = "committed"
	outcomeInsufficient = "insufficient_stock"
	outcomeConflict     = "conflict"
	outcomeFailed       = "failed"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	Outcomes          map[string]int64        `json:"outcomes"`
	UnitsSold         int64                   `json:"units_sold"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	Oversold          bool                    `json:"oversold"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

// samples — задержки в миллисекундах.
type samples []float64

func (s *samples) add(d time.Duration) {
	*s = append(*s, float64(d.Microseconds())/1000)
}

func (s samples) summary() latencySummary {
	if len(s) == 0 {
		return latencySummary{}
	}
	sorted := slices.Sorted(slices.Values(s))

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo, frac := math.Modf(rank)
	i := int(lo)
	if frac == 0 {
		return sorted[i]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}

type callStats struct {
	success, failed int64
	codes           map[string]int64
	latency         samples
}

type collector struct {
	mu        sync.Mutex
	calls     map[string]*callStats
	outcomes  map[string]int64
	unitsSold int64
	latency   samples
}

func newCollector() *collector {
	return &collector{calls: map[string]*callStats{}, outcomes: map[string]int64{}}
}

// observeCall учитывает один RPC, начатый в start.
func (c *collector) observeCall(method string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err)

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.calls[method]
	if st == nil {
		st = &callStats{codes: map[string]int64{}}
		c.calls[method] = st
	}
	if code == codes.OK {
		st.success++
	} else {
		st.failed++
	}
	st.codes[code.String()]++
	st.latency.add(elapsed)
}

func (c *collector) observeScenario(start time.Time, outcome string, units int64) {
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes[outcome]++
	c.unitsSold += units
	c.latency.add(elapsed)
}

func (c *collector) report(startedAt time.Time, elapsed time.Duration, initialStock int) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	scenarios := int64(len(c.latency))
	r := report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   elapsed.Seconds(),
		TotalScenarios:    scenarios,
		Outcomes:          maps.Clone(c.outcomes),
		UnitsSold:         c.unitsSold,
		ErrorRate:         ratio(c.outcomes[outcomeFailed], scenarios),
		Oversold:          initialStock > 0 && c.unitsSold > int64(initialStock),
		ScenarioLatencyMs: c.latency.summary(),
		Methods:           make(map[string]methodReport, len(c.calls)),
	}
	if elapsed > 0 {
		r.RPS = float64(scenarios) / elapsed.Seconds()
	}

	for name, st := range c.calls {
		total := st.success + st.failed
		r.Methods[name] = methodReport{
			Calls:     total,
			Success:   st.success,
			Failed:    st.failed,
			ErrorRate: ratio(st.failed, total),
			Codes:     maps.Clone(st.codes),
			LatencyMs: st.latency.summary(),
		}
	}
	return r
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// classify отделяет ожидаемые под нагрузкой отказы от настоящих ошибок.
func classify(err error) string {
	switch status.Code(err) {
	case codes.OK:
		return outcomeCommitted
	case codes.FailedPrecondition:
		return outcomeInsufficient
	case codes.Aborted:
		return outcomeConflict
	default:
		return outcomeFailed
	}
}
