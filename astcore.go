// Package astcore is the parsing core: it ingests source files in many
// languages, parses them with tree-sitter grammars, and transforms the
// trees into a uniform, annotated, persistable node model for semantic
// search, indexing, and agent-facing queries.
//
// Core is the entry point collaborators use. It wires the language
// registry, grammar manager, runtime detector, and per-file pipeline, and
// exposes the three processing operations plus cache and grammar
// management.
package astcore

import (
	"context"
	"log"
	"runtime"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/batch"
	"github.com/agentic-research/astcore/internal/grammar"
	"github.com/agentic-research/astcore/internal/language"
	"github.com/agentic-research/astcore/internal/pipeline"
	rt "github.com/agentic-research/astcore/internal/runtime"
	"github.com/agentic-research/astcore/internal/store"
)

// Options configure a Core instance. The zero value is usable.
type Options struct {
	// GrammarDir is the grammar cache root; "" means .astdb/grammars.
	GrammarDir string
	// DownloadAttempts and other retry tuning pass through to the grammar
	// manager; zero keeps the defaults (3 attempts, 1s base delay).
	DownloadAttempts int
	// ParserPoolSize bounds idle parsers per language; zero means
	// min(8, GOMAXPROCS).
	ParserPoolSize int
	// Ledger receives error statistics; nil uses the process default.
	Ledger *coreerr.Ledger
	// Logger enables grammar acquisition logging; nil is silent.
	Logger *log.Logger
}

// Core owns the shared machinery behind the processing operations.
type Core struct {
	registry *language.Registry
	grammars *grammar.Manager
	detector *rt.Detector
	pipe     *pipeline.Pipeline
	ledger   *coreerr.Ledger
	cache    *batch.Cache
}

// New builds a Core.
func New(opts Options) *Core {
	ledger := opts.Ledger
	if ledger == nil {
		ledger = coreerr.Default()
	}

	var gopts []grammar.Option
	if opts.DownloadAttempts > 0 {
		gopts = append(gopts, grammar.WithRetry(opts.DownloadAttempts, 0))
	}
	if opts.Logger != nil {
		gopts = append(gopts, grammar.WithLogger(opts.Logger))
	}
	grammars := grammar.NewManager(opts.GrammarDir, gopts...)

	poolSize := opts.ParserPoolSize
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
		if poolSize > 8 {
			poolSize = 8
		}
	}

	registry := language.NewRegistry()
	detector := rt.NewDetector(grammars, poolSize)
	return &Core{
		registry: registry,
		grammars: grammars,
		detector: detector,
		pipe:     pipeline.New(registry, detector, ledger),
		ledger:   ledger,
		cache:    batch.NewCache(0, false),
	}
}

// FileRequest names one file for ProcessFile. Language overrides
// detection; Source, when non-nil, is used instead of reading the path.
type FileRequest struct {
	FilePath string
	Language string
	Source   []byte
	Config   api.PipelineConfig
}

// ProcessFile runs the per-file pipeline once.
func (c *Core) ProcessFile(ctx context.Context, req FileRequest) *api.FileResult {
	return c.pipe.Process(ctx, pipeline.Request{
		FilePath: req.FilePath,
		Language: req.Language,
		Source:   req.Source,
		Config:   req.Config,
	})
}

// batchCache returns the process-wide cache unless the options demand a
// differently-shaped one (dedupe or a custom size).
func (c *Core) batchCache(opts api.BatchOptions) *batch.Cache {
	if opts.DedupeByHash || opts.CacheSize > 0 {
		return nil
	}
	return c.cache
}

// ProcessBatch runs the pipeline over the inputs with bounded
// concurrency. Once processing has started, the error is non-nil only in
// continueOnError=false mode, carrying the originating failure, and the
// partial result is returned either way. A store that cannot be opened
// fails the call before any input is processed, with a nil result.
func (c *Core) ProcessBatch(ctx context.Context, inputs []api.BatchInput, opts api.BatchOptions) (*api.BatchResult, error) {
	proc := batch.New(c.pipe, opts, c.ledger, c.batchCache(opts))
	if opts.StorePath != "" {
		st, err := store.Open(opts.StorePath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = st.Close() }()
		proc.SetStore(st)
	}
	return proc.Run(ctx, inputs)
}

// ProcessDirectory scans root per the directory options and batches the
// surviving files.
func (c *Core) ProcessDirectory(ctx context.Context, root string, opts api.DirectoryOptions) (*api.BatchResult, error) {
	proc := batch.New(c.pipe, opts.BatchOptions, c.ledger, c.batchCache(opts.BatchOptions))
	inputs, err := proc.ScanDirectory(root, opts)
	if err != nil {
		return nil, &coreerr.IOError{FilePath: root, Op: "scan", Cause: err}
	}
	if opts.StorePath != "" {
		st, err := store.Open(opts.StorePath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = st.Close() }()
		proc.SetStore(st)
	}
	return proc.Run(ctx, inputs)
}

// DetectLanguage resolves a language for a path, optionally consulting
// content heuristics. Extension matches always win.
func (c *Core) DetectLanguage(path string, content []byte) (string, bool) {
	return c.registry.Detect(path, content)
}

// DescribeLanguage returns the grammar descriptor for a language name.
func (c *Core) DescribeLanguage(name string) (api.GrammarDescriptor, bool) {
	return c.registry.Describe(name)
}

// AddLanguage registers or replaces a language descriptor.
func (c *Core) AddLanguage(d api.GrammarDescriptor) error { return c.registry.Add(d) }

// RemoveLanguage drops a language and its extensions.
func (c *Core) RemoveLanguage(name string) bool { return c.registry.Remove(name) }

// Languages lists the registered language names.
func (c *Core) Languages() []string { return c.registry.Names() }

// AcquireGrammar downloads (or revalidates) the grammar artifact for a
// language and returns its cached path.
func (c *Core) AcquireGrammar(ctx context.Context, name string) (string, error) {
	d, ok := c.registry.Describe(name)
	if !ok {
		return "", &coreerr.ConfigError{Reason: "unknown language " + name}
	}
	return c.grammars.Acquire(ctx, d)
}

// VerifyGrammar recomputes the cached artifact hash for a language.
func (c *Core) VerifyGrammar(name string) bool { return c.grammars.Verify(name) }

// CleanGrammars deletes the grammar cache tree.
func (c *Core) CleanGrammars() error { return c.grammars.Clean() }

// GrammarRecord returns the persisted metadata for a cached grammar.
func (c *Core) GrammarRecord(name string) (*api.GrammarRecord, error) {
	return c.grammars.Record(name)
}

// GetCacheStats returns the batch result cache counters.
func (c *Core) GetCacheStats() api.CacheStats { return c.cache.Stats() }

// ClearCache empties the batch result cache.
func (c *Core) ClearCache() { c.cache.Clear() }

// ErrorSnapshot returns the ledger's per-kind statistics.
func (c *Core) ErrorSnapshot() map[coreerr.Kind]coreerr.KindStats { return c.ledger.Snapshot() }

// Close releases pooled parser instances.
func (c *Core) Close() { c.detector.Close() }
