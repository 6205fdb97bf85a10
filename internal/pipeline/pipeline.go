// Package pipeline runs the per-file stages: admission, hashing, parse,
// walk, enrichment, validation, and optional serialization. Stage errors
// never escape as panics or raw errors — every outcome is a FileResult.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/classify"
	"github.com/agentic-research/astcore/internal/language"
	"github.com/agentic-research/astcore/internal/metadata"
	"github.com/agentic-research/astcore/internal/nodeid"
	rt "github.com/agentic-research/astcore/internal/runtime"
	"github.com/agentic-research/astcore/internal/serialize"
	"github.com/agentic-research/astcore/internal/walker"
)

// Request names one file to process. Source, when non-nil, is used
// instead of reading FilePath. Language overrides detection.
type Request struct {
	FilePath string
	Language string
	Source   []byte
	Config   api.PipelineConfig
}

// Pipeline executes requests against a shared registry and runtime.
type Pipeline struct {
	registry *language.Registry
	detector *rt.Detector
	ledger   *coreerr.Ledger
}

// New wires a pipeline. A nil ledger records to the process default.
func New(registry *language.Registry, detector *rt.Detector, ledger *coreerr.Ledger) *Pipeline {
	if ledger == nil {
		ledger = coreerr.Default()
	}
	return &Pipeline{registry: registry, detector: detector, ledger: ledger}
}

// Registry exposes the language registry the pipeline resolves against.
func (p *Pipeline) Registry() *language.Registry { return p.registry }

// run tracks one request's deadline and accumulating result.
type run struct {
	res      *api.FileResult
	deadline time.Time
	ledger   *coreerr.Ledger
}

// fail records a terminal error and flips the result unsuccessful.
func (r *run) fail(err coreerr.CoreError) *api.FileResult {
	r.res.Errors = append(r.res.Errors, err)
	r.res.Success = false
	r.ledger.Record(err)
	return r.res
}

// expired checks the stage boundary deadline.
func (r *run) expired(stage string, limit time.Duration) coreerr.CoreError {
	if time.Now().After(r.deadline) {
		return &coreerr.TimeoutError{FilePath: r.res.FilePath, Stage: stage, Limit: limit}
	}
	return nil
}

// Process runs the full per-file pipeline.
func (p *Pipeline) Process(ctx context.Context, req Request) *api.FileResult {
	cfg := req.Config
	started := time.Now()
	limit := cfg.Timeout()

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	r := &run{
		res:      &api.FileResult{FilePath: req.FilePath, Success: true},
		deadline: started.Add(limit),
		ledger:   p.ledger,
	}

	ctx, cancel := context.WithDeadline(ctx, r.deadline)
	defer cancel()

	// Admission: source bytes, size limit, language support.
	src := req.Source
	if src == nil {
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return r.fail(&coreerr.IOError{FilePath: req.FilePath, Op: "read", Cause: err})
		}
		src = data
	}
	if int64(len(src)) > cfg.MaxFileSize() {
		return r.fail(&coreerr.SizeLimitError{
			FilePath: req.FilePath,
			Size:     int64(len(src)),
			Limit:    cfg.MaxFileSize(),
		})
	}

	lang := strings.ToLower(req.Language)
	if lang == "" {
		detected, ok := p.registry.Detect(req.FilePath, src)
		if !ok {
			return r.fail(&coreerr.ConfigError{
				FilePath: req.FilePath,
				Reason:   "unsupported language for " + filepath.Ext(req.FilePath),
			})
		}
		lang = detected
	}
	desc, ok := p.registry.Describe(lang)
	if !ok {
		return r.fail(&coreerr.ConfigError{FilePath: req.FilePath, Reason: "unknown language " + lang})
	}
	r.res.Language = lang

	// Hashing: the content address doubles as the batch cache key.
	sum := sha256.Sum256(src)
	r.res.FileHash = hex.EncodeToString(sum[:])

	if terr := r.expired("admission", limit); terr != nil {
		return r.fail(terr)
	}

	// Parse.
	parser, err := p.detector.GetParser(ctx, desc)
	if err != nil {
		if ce, ok := err.(coreerr.CoreError); ok {
			return r.fail(ce)
		}
		return r.fail(&coreerr.RuntimeError{FilePath: req.FilePath, Language: lang, Cause: err})
	}
	tree, err := parser.Parse(ctx, src)
	if err != nil {
		// A failed parser is not returned to the pool.
		p.detector.Dispose(parser)
		if ctx.Err() != nil {
			return r.fail(&coreerr.TimeoutError{FilePath: req.FilePath, Stage: "parse", Limit: limit})
		}
		return r.fail(&coreerr.RuntimeError{FilePath: req.FilePath, Language: lang, Cause: err})
	}
	p.detector.Release(parser)
	defer tree.Close()

	if terr := r.expired("parse", limit); terr != nil {
		return r.fail(terr)
	}

	// Walk: classification is applied node-by-node during traversal.
	walked := walker.Walk(tree, src, req.FilePath, lang, walker.Config{
		ClassifyNodes:      cfg.ClassifyNodes,
		IncludeSourceText:  cfg.IncludeSourceText,
		PreserveErrorNodes: cfg.PreserveErrorNodes,
	})
	r.res.Nodes = walked.Nodes
	r.res.Errors = append(r.res.Errors, walked.Errors...)
	for _, werr := range walked.Errors {
		p.ledger.Record(werr)
	}

	if terr := r.expired("walk", limit); terr != nil {
		r.finishStats(started, &memBefore)
		return r.fail(terr)
	}

	// Enrichment. Later stages read earlier results, never the reverse:
	// metadata feeds significance, significance precedes id assignment
	// only by convention (ids hash coordinates, not levels).
	if cfg.ExtractMetadata {
		metadata.Extract(walked.Nodes, walked.Raw, walked.ParentIdx, src, lang, metadata.Options{
			Signatures: cfg.GenerateSignatures,
			Complexity: cfg.CalculateComplexity,
		})
	}
	for _, n := range walked.Nodes {
		if cfg.CalculateSignificance {
			n.Significance = classify.Significance(n.Type, lang, &n.Metadata)
		} else {
			n.Significance = api.Low
		}
	}
	if cfg.GenerateIDs {
		alloc := nodeid.NewAllocator(req.FilePath, lang, p.ledger)
		for _, n := range walked.Nodes {
			alloc.Assign(n)
		}
		link(walked)
	}

	if terr := r.expired("enrich", limit); terr != nil {
		r.finishStats(started, &memBefore)
		return r.fail(terr)
	}

	// Validation.
	if cfg.ValidateNodes && cfg.GenerateIDs {
		if err := serialize.ValidateInvariants(req.FilePath, walked.Nodes); err != nil {
			r.finishStats(started, &memBefore)
			return r.fail(err.(coreerr.CoreError))
		}
	}

	// Serialization.
	if cfg.EnableSerialization {
		if err := p.serializeResult(r.res, cfg); err != nil {
			r.finishStats(started, &memBefore)
			if ce, ok := err.(coreerr.CoreError); ok {
				return r.fail(ce)
			}
			return r.fail(&coreerr.IOError{FilePath: req.FilePath, Op: "serialize", Cause: err})
		}
	}

	r.finishStats(started, &memBefore)
	return r.res
}

// link materializes Parent/Children id references from walk indexes.
func link(w *walker.Result) {
	for i, n := range w.Nodes {
		if p := w.ParentIdx[i]; p >= 0 {
			n.Parent = w.Nodes[p].ID
		}
		children := make([]string, 0, len(w.ChildIdx[i]))
		for _, c := range w.ChildIdx[i] {
			children = append(children, w.Nodes[c].ID)
		}
		n.Children = children
	}
}

func (p *Pipeline) serializeResult(res *api.FileResult, cfg api.PipelineConfig) error {
	out := cfg.OutputPath
	if out == "" && cfg.OutputDir != "" {
		out = filepath.Join(cfg.OutputDir, filepath.Base(res.FilePath)+".ast.json")
	}
	if out == "" {
		return &coreerr.ConfigError{FilePath: res.FilePath, Reason: "serialization enabled without an output path"}
	}

	ser := serialize.New(cfg.Serializer)
	if err := ser.SaveToFile(res, out); err != nil {
		return err
	}
	res.SerializedPath = out

	if cfg.Serializer.IncludeValidateRoundTrip {
		decoded, err := ser.LoadFromFile(out)
		if err != nil {
			return err
		}
		if !serialize.ValidateRoundTrip(res.Nodes, decoded.Nodes) {
			p.ledger.Record(&coreerr.InvariantWarning{
				FilePath: res.FilePath,
				Detail:   "serialized bundle did not round-trip",
			})
		}
	}
	return nil
}

// finishStats fills the result statistics block.
func (r *run) finishStats(started time.Time, memBefore *runtime.MemStats) {
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	elapsed := time.Since(started)
	stats := api.ProcessingStats{
		TotalNodes:          len(r.res.Nodes),
		NodesByType:         make(map[api.NodeType]int),
		NodesBySignificance: make(map[api.Significance]int),
		ElapsedMs:           elapsed.Milliseconds(),
	}
	for _, n := range r.res.Nodes {
		stats.NodesByType[n.Type]++
		stats.NodesBySignificance[n.Significance]++
	}
	if memAfter.HeapAlloc > memBefore.HeapAlloc {
		stats.PeakMemoryDelta = int64(memAfter.HeapAlloc - memBefore.HeapAlloc)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.NodesPerSecond = float64(len(r.res.Nodes)) / secs
	}
	r.res.Stats = stats
}
