package batch

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/agentic-research/astcore/api"
)

// collector accumulates optional performance metrics and the memory
// observations every run keeps.
type collector struct {
	mu       sync.Mutex
	enabled  bool
	started  time.Time
	parseMs  []float64
	byLang   map[string]api.LanguageStats
	rates    []float64
	memMB    []int64
	peakMB   int64
}

func newCollector(enabled bool) *collector {
	return &collector{
		enabled: enabled,
		started: time.Now(),
		byLang:  make(map[string]api.LanguageStats),
	}
}

// observe records one completed file.
func (c *collector) observe(res *api.FileResult, completed int) (rate float64, memMB int64) {
	memMB = heapMB()
	elapsed := time.Since(c.started).Seconds()
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if memMB > c.peakMB {
		c.peakMB = memMB
	}
	if !c.enabled {
		return rate, memMB
	}

	c.parseMs = append(c.parseMs, float64(res.Stats.ElapsedMs))
	ls := c.byLang[res.Language]
	ls.Files++
	ls.Nodes += res.Stats.TotalNodes
	ls.TotalMs += res.Stats.ElapsedMs
	c.byLang[res.Language] = ls
	c.rates = append(c.rates, rate)
	c.memMB = append(c.memMB, memMB)
	return rate, memMB
}

func (c *collector) memory() api.MemoryStats {
	final := heapMB()
	c.mu.Lock()
	defer c.mu.Unlock()
	peak := c.peakMB
	if final > peak {
		peak = final
	}
	return api.MemoryStats{PeakUsageMB: peak, FinalUsageMB: final}
}

func (c *collector) metrics() *api.PerformanceMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil
	}
	sorted := make([]float64, len(c.parseMs))
	copy(sorted, c.parseMs)
	sort.Float64s(sorted)

	perLang := make(map[string]api.LanguageStats, len(c.byLang))
	for k, v := range c.byLang {
		perLang[k] = v
	}
	return &api.PerformanceMetrics{
		ParseP50Ms:      percentile(sorted, 0.50),
		ParseP95Ms:      percentile(sorted, 0.95),
		ParseP99Ms:      percentile(sorted, 0.99),
		PerLanguage:     perLang,
		RateHistory:     append([]float64(nil), c.rates...),
		MemoryHistoryMB: append([]int64(nil), c.memMB...),
	}
}

// percentile reads the nearest-rank percentile from a sorted slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func heapMB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc / (1024 * 1024))
}
