package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type callReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	RunID           string                `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	DurationSeconds float64               `json:"duration_seconds"`
	ProductID       int64                 `json:"product_id"`
	InitialStock    int                   `json:"initial_stock"`
	Orders          int                   `json:"orders"`
	Added           int64                 `json:"added"`
	Rejected        int64                 `json:"rejected"`
	FinalStock      int                   `json:"final_stock"`
	Calls           map[string]callReport `json:"calls"`
}

type callStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

// collector накапливает латентность и статусы по видам вызовов.
type collector struct {
	mu    sync.Mutex
	calls map[string]*callStats
}

func newCollector() *collector {
	return &collector{calls: make(map[string]*callStats)}
}

// record учитывает вызов; status 0 означает транспортную ошибку.
func (c *collector) record(kind string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.calls[kind]
	if !ok {
		stats = &callStats{statuses: make(map[string]int64)}
		c.calls[kind] = stats
	}

	stats.calls++
	if status >= 200 && status < 300 {
		stats.success++
	} else {
		stats.failed++
	}
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	stats.statuses[label]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot() map[string]callReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]callReport, len(c.calls))
	for kind, stats := range c.calls {
		statuses := make(map[string]int64, len(stats.statuses))
		for k, v := range stats.statuses {
			statuses[k] = v
		}
		out[kind] = callReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			Statuses:  statuses,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return out
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
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

// percentile использует линейную интерполяцию между соседними рангами.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}

	// #nosec G304 -- путь к отчёту задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report) {
	fmt.Fprintln(out, "Stock bench summary")
	fmt.Fprintf(out, "run=%s product=%d stock=%d orders=%d added=%d rejected=%d final_stock=%d duration=%.2fs\n",
		result.RunID, result.ProductID, result.InitialStock, result.Orders,
		result.Added, result.Rejected, result.FinalStock, result.DurationSeconds)

	kinds := make([]string, 0, len(result.Calls))
	for kind := range result.Calls {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		stats := result.Calls[kind]
		fmt.Fprintf(out, "%s: calls=%d success=%d failed=%d p50=%.2fms p95=%.2fms p99=%.2fms statuses=%s\n",
			kind, stats.Calls, stats.Success, stats.Failed,
			stats.LatencyMs.P50, stats.LatencyMs.P95, stats.LatencyMs.P99, formatStatuses(stats.Statuses))
	}
}

func formatStatuses(statuses map[string]int64) string {
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+strconv.FormatInt(statuses[k], 10))
	}
	return strings.Join(parts, ",")
}
