// Package batch runs the per-file pipeline over many files with bounded
// concurrency, content-addressed caching, progress events, and error
// aggregation.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/pipeline"
)

// memoryPollStep is how often a paused scheduler re-checks the soft
// memory ceiling.
const memoryPollStep = 100 * time.Millisecond

// errorGroupSamples bounds sample file paths retained per error group.
const errorGroupSamples = 5

// BundleStore persists successful results for downstream consumers. The
// SQLite implementation lives in internal/store; batch only needs the
// sink behavior.
type BundleStore interface {
	Put(*api.FileResult) error
	Close() error
}

// Processor executes batches against one pipeline and one result cache.
type Processor struct {
	pipeline *pipeline.Pipeline
	opts     api.BatchOptions
	cache    *Cache
	ledger   *coreerr.Ledger
	store    BundleStore
}

// New builds a processor. A nil cache gets a private one; passing a
// shared cache keeps hits warm across batch runs in the same process.
// A nil ledger records to the process default.
func New(p *pipeline.Pipeline, opts api.BatchOptions, ledger *coreerr.Ledger, cache *Cache) *Processor {
	if ledger == nil {
		ledger = coreerr.Default()
	}
	if cache == nil {
		cache = NewCache(opts.CacheSize, opts.DedupeByHash)
	}
	return &Processor{
		pipeline: p,
		opts:     opts,
		cache:    cache,
		ledger:   ledger,
	}
}

// SetStore attaches a bundle store sink for successful results.
func (b *Processor) SetStore(s BundleStore) { b.store = s }

// CacheStats exposes the result cache counters.
func (b *Processor) CacheStats() api.CacheStats { return b.cache.Stats() }

// ClearCache empties the result cache.
func (b *Processor) ClearCache() { b.cache.Clear() }

// concurrency resolves the permit count: min(8, cores) by default.
func (b *Processor) concurrency() int {
	if b.opts.Concurrency > 0 {
		return b.opts.Concurrency
	}
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// aggregate collects results and drives progress under one mutex.
type aggregate struct {
	mu        sync.Mutex
	results   map[string]*api.FileResult
	skipped   []string
	groups    map[string]map[string]*api.ErrorGroup // kind -> template -> group
	completed int
	total     int
	progress  func(api.ProgressEvent)
	coll      *collector
}

// digitRuns generalizes sizes and counts out of message templates so one
// group aggregates all occurrences of a failure shape.
var digitRuns = regexp.MustCompile(`[0-9]+`)

func messageTemplate(err coreerr.CoreError) string {
	msg := err.Error()
	if p := err.Path(); p != "" {
		msg = strings.Replace(msg, p, "{file}", 1)
	}
	return digitRuns.ReplaceAllString(msg, "{n}")
}

func (a *aggregate) recordError(err coreerr.CoreError) {
	kind := string(err.Kind())
	template := messageTemplate(err)
	byTemplate := a.groups[kind]
	if byTemplate == nil {
		byTemplate = make(map[string]*api.ErrorGroup)
		a.groups[kind] = byTemplate
	}
	g := byTemplate[template]
	if g == nil {
		g = &api.ErrorGroup{MessageTemplate: template}
		byTemplate[template] = g
	}
	g.Count++
	if p := err.Path(); p != "" && len(g.SampleFiles) < errorGroupSamples {
		g.SampleFiles = append(g.SampleFiles, p)
	}
}

// deliver registers one completed file and emits progress synchronously.
func (a *aggregate) deliver(res *api.FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results[res.FilePath] = res
	a.completed++
	for _, err := range res.Errors {
		a.recordError(err)
	}

	rate, memMB := a.coll.observe(res, a.completed)
	if a.progress != nil {
		a.progress(api.ProgressEvent{
			Completed:     a.completed,
			Total:         a.total,
			CurrentFile:   res.FilePath,
			RatePerSecond: rate,
			MemoryUsageMB: memMB,
		})
	}
}

// Run processes the inputs and aggregates a BatchResult. With
// continueOnError=false the first failure cancels pending permits, awaits
// in-flight files, and is returned as the error alongside the partial
// result.
func (b *Processor) Run(ctx context.Context, inputs []api.BatchInput) (*api.BatchResult, error) {
	agg := &aggregate{
		results:  make(map[string]*api.FileResult, len(inputs)),
		groups:   make(map[string]map[string]*api.ErrorGroup),
		total:    len(inputs),
		progress: b.opts.Progress,
		coll:     newCollector(b.opts.CollectMetrics),
	}

	admitted := b.admit(inputs, agg)
	agg.total = len(admitted)

	// admitCtx only gates new admissions. Work already holding a permit
	// runs under the caller's ctx: parser runs are not interruptible
	// mid-parse, and a first failure must await in-flight completions
	// rather than abort them.
	admitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(b.concurrency()))
	var wg sync.WaitGroup

	var failMu sync.Mutex
	var firstFailure coreerr.CoreError

	for _, in := range admitted {
		if admitCtx.Err() != nil {
			break
		}
		b.pauseForMemory(admitCtx)
		if err := sem.Acquire(admitCtx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(in api.BatchInput) {
			defer wg.Done()
			defer sem.Release(1)

			res := b.processOne(ctx, in)
			agg.deliver(res)

			if !res.Success && !b.opts.ContinueOnError {
				failMu.Lock()
				if firstFailure == nil && len(res.Errors) > 0 {
					firstFailure = res.Errors[len(res.Errors)-1]
				}
				failMu.Unlock()
				cancel()
			}
		}(in)
	}
	wg.Wait()

	result := b.assemble(inputs, agg)
	if firstFailure != nil {
		return result, firstFailure
	}
	return result, nil
}

// admit filters unsupported and oversized inputs up front, recording them
// as skipped with their error aggregated.
func (b *Processor) admit(inputs []api.BatchInput, agg *aggregate) []api.BatchInput {
	maxSize := b.opts.Pipeline.MaxFileSize()
	reg := b.pipeline.Registry()

	admitted := make([]api.BatchInput, 0, len(inputs))
	for _, in := range inputs {
		if in.Language == "" {
			lang, ok := reg.DetectByExtension(in.FilePath)
			if !ok {
				err := &coreerr.ConfigError{FilePath: in.FilePath, Reason: "unsupported extension"}
				b.ledger.Record(err)
				agg.recordError(err)
				agg.skipped = append(agg.skipped, in.FilePath)
				continue
			}
			in.Language = lang
		}

		size := int64(len(in.Source))
		if in.Source == nil {
			if info, err := os.Stat(in.FilePath); err == nil {
				size = info.Size()
			}
		}
		if size > maxSize {
			err := &coreerr.SizeLimitError{FilePath: in.FilePath, Size: size, Limit: maxSize}
			b.ledger.Record(err)
			agg.recordError(err)
			agg.skipped = append(agg.skipped, in.FilePath)
			continue
		}

		admitted = append(admitted, in)
	}
	return admitted
}

// processOne reads, hashes, consults the cache, and falls through to the
// pipeline on a miss.
func (b *Processor) processOne(ctx context.Context, in api.BatchInput) *api.FileResult {
	src := in.Source
	if src == nil {
		data, err := os.ReadFile(in.FilePath)
		if err != nil {
			ioErr := &coreerr.IOError{FilePath: in.FilePath, Op: "read", Cause: err}
			b.ledger.Record(ioErr)
			return &api.FileResult{
				FilePath: in.FilePath,
				Language: in.Language,
				Errors:   []coreerr.CoreError{ioErr},
			}
		}
		src = data
	}

	sum := sha256.Sum256(src)
	fileHash := hex.EncodeToString(sum[:])

	if cached, ok := b.cache.get(in.FilePath, fileHash); ok {
		return cached
	}

	res := b.pipeline.Process(ctx, pipeline.Request{
		FilePath: in.FilePath,
		Language: in.Language,
		Source:   src,
		Config:   b.opts.Pipeline,
	})
	b.cache.put(in.FilePath, fileHash, res)

	if b.store != nil && res.Success {
		if err := b.store.Put(res); err != nil {
			b.ledger.Record(&coreerr.IOError{FilePath: in.FilePath, Op: "store", Cause: err})
		}
	}
	return res
}

// pauseForMemory blocks new permit acquisition while the soft ceiling is
// exceeded. In-flight work keeps running; nothing is cancelled for memory
// alone.
func (b *Processor) pauseForMemory(ctx context.Context) {
	if b.opts.MaxMemoryMB <= 0 {
		return
	}
	for heapMB() > b.opts.MaxMemoryMB && ctx.Err() == nil {
		time.Sleep(memoryPollStep)
	}
}

// assemble builds the final BatchResult in input order.
func (b *Processor) assemble(inputs []api.BatchInput, agg *aggregate) *api.BatchResult {
	agg.mu.Lock()
	defer agg.mu.Unlock()

	order := make([]string, 0, len(agg.results))
	for _, in := range inputs {
		if _, ok := agg.results[in.FilePath]; ok {
			order = append(order, in.FilePath)
		}
	}

	summary := api.BatchSummary{
		TotalFiles: len(inputs),
		Skipped:    len(agg.skipped),
	}
	for _, r := range agg.results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	errorSummary := make(map[string][]*api.ErrorGroup, len(agg.groups))
	for kind, byTemplate := range agg.groups {
		groups := make([]*api.ErrorGroup, 0, len(byTemplate))
		for _, g := range byTemplate {
			groups = append(groups, g)
		}
		errorSummary[kind] = groups
	}

	return &api.BatchResult{
		Results:      agg.results,
		Order:        order,
		Skipped:      agg.skipped,
		ErrorSummary: errorSummary,
		Summary:      summary,
		Memory:       agg.coll.memory(),
		Metrics:      agg.coll.metrics(),
	}
}
