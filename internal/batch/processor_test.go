package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/grammar"
	"github.com/agentic-research/astcore/internal/language"
	"github.com/agentic-research/astcore/internal/pipeline"
	rt "github.com/agentic-research/astcore/internal/runtime"
)

const goSource = "package main\n\nfunc Add(a int, b int) int {\n\treturn a + b\n}\n"

func testProcessor(t *testing.T, opts api.BatchOptions) *Processor {
	t.Helper()
	mgr := grammar.NewManager(t.TempDir())
	det := rt.NewDetector(mgr, 4)
	t.Cleanup(det.Close)
	p := pipeline.New(language.NewRegistry(), det, coreerr.NewLedger())
	return New(p, opts, coreerr.NewLedger(), nil)
}

func defaultOpts() api.BatchOptions {
	opts := api.DefaultBatchOptions()
	opts.Pipeline = api.PerformanceConfig()
	return opts
}

func writeFiles(t *testing.T, dir string, n int) []api.BatchInput {
	t.Helper()
	inputs := make([]api.BatchInput, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%03d.go", i))
		src := fmt.Sprintf("package main\n\nfunc F%d() int {\n\treturn %d\n}\n", i, i)
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
		inputs = append(inputs, api.BatchInput{FilePath: path})
	}
	return inputs
}

func TestBatchMixedInputs(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 10)

	// Three oversized files.
	opts := defaultOpts()
	opts.Pipeline.MaxFileSizeBytes = 512
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("big%d.go", i))
		big := make([]byte, 600)
		copy(big, "package main\n")
		require.NoError(t, os.WriteFile(path, big, 0o644))
		inputs = append(inputs, api.BatchInput{FilePath: path})
	}
	// Two unsupported extensions.
	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, fmt.Sprintf("data%d.weird", i))
		require.NoError(t, os.WriteFile(path, []byte("???"), 0o644))
		inputs = append(inputs, api.BatchInput{FilePath: path})
	}

	b := testProcessor(t, opts)
	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 15, res.Summary.TotalFiles)
	assert.Equal(t, 5, res.Summary.Skipped)
	assert.Equal(t, 10, res.Summary.Successful+res.Summary.Failed)
	assert.Equal(t, 10, res.Summary.Successful)

	sizeGroups := res.ErrorSummary["size-limit"]
	require.Len(t, sizeGroups, 1, "one template groups all size-limit failures")
	assert.Equal(t, 3, sizeGroups[0].Count)
	assert.Len(t, sizeGroups[0].SampleFiles, 3)

	require.NotEmpty(t, res.ErrorSummary["config"])
}

func TestBatchOrderMatchesInputOrder(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 20)

	opts := defaultOpts()
	opts.Concurrency = 4
	b := testProcessor(t, opts)

	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	require.Len(t, res.Order, 20)
	for i, in := range inputs {
		assert.Equal(t, in.FilePath, res.Order[i])
	}
}

func TestBatchCacheHitOnSecondRun(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 5)

	b := testProcessor(t, defaultOpts())

	first, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 5, first.Summary.Successful)
	afterFirst := b.CacheStats()
	assert.Equal(t, int64(5), afterFirst.Misses)
	assert.Equal(t, int64(0), afterFirst.Hits)

	second, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 5, second.Summary.Successful)
	afterSecond := b.CacheStats()
	assert.Equal(t, int64(5), afterSecond.Hits)

	// Primed cache returns equivalent results.
	for path, fresh := range first.Results {
		cached := second.Results[path]
		require.NotNil(t, cached)
		assert.Equal(t, fresh.FileHash, cached.FileHash)
		assert.Equal(t, len(fresh.Nodes), len(cached.Nodes))
	}
}

func TestBatchCacheInvalidatedByContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mut.go")
	require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))
	inputs := []api.BatchInput{{FilePath: path}}

	b := testProcessor(t, defaultOpts())
	_, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	// Same mtime tricks don't matter: content hash is the key.
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Changed() {}\n"), 0o644))
	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	stats := b.CacheStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	fn := res.Results[path].Stats.NodesByType[api.TypeFunction]
	assert.Equal(t, 1, fn)
}

func TestBatchIdenticalBytesDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	var inputs []api.BatchInput
	for i := 0; i < 12; i++ {
		path := filepath.Join(dir, fmt.Sprintf("copy%02d.go", i))
		require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))
		inputs = append(inputs, api.BatchInput{FilePath: path})
	}

	b := testProcessor(t, defaultOpts())
	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 12, res.Summary.Successful)

	// All copies share one content hash...
	hash := res.Results[inputs[0].FilePath].FileHash
	for _, in := range inputs {
		assert.Equal(t, hash, res.Results[in.FilePath].FileHash)
	}
	// ...but without dedupe every path parses on its own.
	assert.Equal(t, int64(12), b.CacheStats().Misses)
}

func TestBatchDedupeByHash(t *testing.T) {
	dir := t.TempDir()
	var inputs []api.BatchInput
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, fmt.Sprintf("dup%d.go", i))
		require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))
		inputs = append(inputs, api.BatchInput{FilePath: path})
	}

	opts := defaultOpts()
	opts.DedupeByHash = true
	opts.Concurrency = 1 // deterministic: one parse, five dedupe hits
	b := testProcessor(t, opts)

	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 6, res.Summary.Successful)
	assert.Equal(t, int64(5), b.CacheStats().Hits)

	// Each result is rebound to its own path.
	for _, in := range inputs {
		assert.Equal(t, in.FilePath, res.Results[in.FilePath].FilePath)
	}
}

func TestBatchProgressEvents(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 8)

	var events []api.ProgressEvent
	opts := defaultOpts()
	opts.Concurrency = 2
	opts.Progress = func(e api.ProgressEvent) { events = append(events, e) }

	b := testProcessor(t, opts)
	_, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	require.Len(t, events, 8, "one event per completion")
	assert.Equal(t, 8, events[len(events)-1].Completed)
	for _, e := range events {
		assert.Equal(t, 8, e.Total)
		assert.NotEmpty(t, e.CurrentFile)
	}
}

func TestBatchContinueOnErrorFalseStopsEarly(t *testing.T) {
	dir := t.TempDir()
	var inputs []api.BatchInput

	// A file that fails admission inside the pipeline: unreadable path.
	inputs = append(inputs, api.BatchInput{FilePath: filepath.Join(dir, "missing.go")})
	inputs = append(inputs, writeFiles(t, dir, 30)...)

	opts := defaultOpts()
	opts.ContinueOnError = false
	opts.Concurrency = 1
	b := testProcessor(t, opts)

	res, err := b.Run(context.Background(), inputs)
	require.Error(t, err)
	var ioe *coreerr.IOError
	assert.ErrorAs(t, err, &ioe)
	assert.Less(t, res.Summary.Successful, 30, "pending files were cancelled")
}

func TestBatchContinueOnErrorTrueCollectsAll(t *testing.T) {
	dir := t.TempDir()
	inputs := []api.BatchInput{
		{FilePath: filepath.Join(dir, "missing1.go")},
		{FilePath: filepath.Join(dir, "missing2.go")},
	}
	inputs = append(inputs, writeFiles(t, dir, 4)...)

	b := testProcessor(t, defaultOpts())
	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.Successful)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.NotEmpty(t, res.ErrorSummary["io"])
}

func TestBatchMetricsCollected(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 6)

	opts := defaultOpts()
	opts.CollectMetrics = true
	b := testProcessor(t, opts)

	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)

	require.NotNil(t, res.Metrics)
	assert.GreaterOrEqual(t, res.Metrics.ParseP95Ms, res.Metrics.ParseP50Ms)
	assert.GreaterOrEqual(t, res.Metrics.ParseP99Ms, res.Metrics.ParseP95Ms)
	require.Contains(t, res.Metrics.PerLanguage, "go")
	assert.Equal(t, 6, res.Metrics.PerLanguage["go"].Files)
	assert.Len(t, res.Metrics.RateHistory, 6)
}

func TestBatchMetricsAbsentByDefault(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 2)

	b := testProcessor(t, defaultOpts())
	res, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	assert.Nil(t, res.Metrics)
	assert.GreaterOrEqual(t, res.Memory.PeakUsageMB, res.Memory.FinalUsageMB)
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	inputs := writeFiles(t, dir, 3)

	b := testProcessor(t, defaultOpts())
	_, err := b.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 3, b.CacheStats().Entries)

	b.ClearCache()
	stats := b.CacheStats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestScanDirectoryFilters(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))

	files := map[string]string{
		"main.go":                    goSource,
		"pkg/util.go":                "package pkg\n",
		"pkg/util_test.go":           "package pkg\n",
		"notes.txt":                  "prose",
		".git/config.go":             "package hidden\n",
		"node_modules/dep/index.js":  "module.exports = 1\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	// Binary with a .go extension is filtered by content.
	bin := append([]byte{0x7f, 'E', 'L', 'F', 0}, make([]byte, 16)...)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sneaky.go"), bin, 0o644))

	b := testProcessor(t, defaultOpts())
	inputs, err := b.ScanDirectory(root, api.DirectoryOptions{
		Recursive:    true,
		ExcludeGlobs: []string{"**/*_test.go"},
	})
	require.NoError(t, err)

	var rels []string
	for _, in := range inputs {
		rel, _ := filepath.Rel(root, in.FilePath)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"main.go", "pkg/util.go"}, rels)
}

func TestScanDirectoryMaxFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, 10)

	b := testProcessor(t, defaultOpts())
	inputs, err := b.ScanDirectory(root, api.DirectoryOptions{Recursive: true, MaxFiles: 4})
	require.NoError(t, err)
	assert.Len(t, inputs, 4)
}

func TestScanDirectoryNonRecursive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.go"), []byte(goSource), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep.go"), []byte(goSource), 0o644))

	b := testProcessor(t, defaultOpts())
	inputs, err := b.ScanDirectory(root, api.DirectoryOptions{Recursive: false})
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, filepath.Join(root, "top.go"), inputs[0].FilePath)
}
