package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

func printReport(out io.Writer, r report, cfg config) {
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format+"\n", args...) }

	w("Load test summary")
	w("mode=%s run=%s products=%s qty=%d", cfg.mode, cfg.target(), strings.Join(cfg.products, ","), cfg.qty)
	w("scenarios=%d committed=%d insufficient_stock=%d conflict=%d failed=%d units_sold=%d",
		r.TotalScenarios,
		r.Outcomes[outcomeCommitted],
		r.Outcomes[outcomeInsufficient],
		r.Outcomes[outcomeConflict],
		r.Outcomes[outcomeFailed],
		r.UnitsSold)
	if cfg.initialStock > 0 {
		w("initial_stock=%d oversold=%t", cfg.initialStock, r.Oversold)
	}
	w("duration=%.2fs rps=%.2f error_rate=%.4f", r.DurationSeconds, r.RPS, r.ErrorRate)

	l := r.ScenarioLatencyMs
	w("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f", l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	for _, name := range slices.Sorted(maps.Keys(r.Methods)) {
		m := r.Methods[name]
		w("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms", name, m.Calls, m.Success, m.Failed, m.ErrorRate, m.LatencyMs.P95)
	}
}

// writeJSONReport пишет отчёт только внутрь текущего каталога.
func writeJSONReport(path string, r report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// #nosec G306 -- отчёт нагрузочного теста не содержит секретов.
	return os.WriteFile(clean, append(raw, '\n'), 0o644)
}
