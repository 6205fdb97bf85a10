// Package runtime selects a tree-sitter execution mode per language and
// hands out pooled, single-threaded parser instances.
//
// Two runtimes exist: native (grammars compiled into the binary) and
// portable (grammar shared libraries downloaded by the grammar manager and
// opened at run time). Probing is deterministic: native first, portable on
// fallthrough. Both failing raises a ParserLoadError carrying both causes.
package runtime

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/grammar"
)

// Runtime loads a tree-sitter language one way.
type Runtime interface {
	Name() string
	Load(ctx context.Context, d api.GrammarDescriptor) (*sitter.Language, error)
}

// Parser is a single-language parser instance. Not safe for concurrent
// use; obtain one per worker from the Detector and release it after.
type Parser struct {
	Language string
	inner    *sitter.Parser
}

// Parse produces a raw tree for src. The returned tree borrows src.
func (p *Parser) Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	return p.inner.ParseCtx(ctx, nil, src)
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	if p.inner != nil {
		p.inner.Close()
		p.inner = nil
	}
}

// Detector probes runtimes and pools parsers per language.
type Detector struct {
	grammars *grammar.Manager
	runtimes []Runtime
	poolSize int

	mu    sync.Mutex
	langs map[string]*sitter.Language
	pools map[string]*pool
}

// NewDetector builds a detector with the standard probe order. poolSize
// bounds idle parsers retained per language; values below one fall back
// to one.
func NewDetector(mgr *grammar.Manager, poolSize int) *Detector {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Detector{
		grammars: mgr,
		runtimes: []Runtime{newNativeRuntime(), newPortableRuntime(mgr)},
		poolSize: poolSize,
		langs:    make(map[string]*sitter.Language),
		pools:    make(map[string]*pool),
	}
}

// language resolves (and caches) the sitter language for a descriptor,
// probing runtimes in order.
func (d *Detector) language(ctx context.Context, desc api.GrammarDescriptor) (*sitter.Language, error) {
	d.mu.Lock()
	if lang, ok := d.langs[desc.Name]; ok {
		d.mu.Unlock()
		return lang, nil
	}
	d.mu.Unlock()

	causes := make([]error, len(d.runtimes))
	for i, rt := range d.runtimes {
		lang, err := rt.Load(ctx, desc)
		if err == nil {
			d.mu.Lock()
			// A concurrent prober may have won; either value is identical.
			if cached, ok := d.langs[desc.Name]; ok {
				lang = cached
			} else {
				d.langs[desc.Name] = lang
			}
			d.mu.Unlock()
			return lang, nil
		}
		causes[i] = err
	}

	return nil, &coreerr.ParserLoadError{
		Language:      desc.Name,
		ArtifactPath:  d.grammars.ArtifactPath(desc),
		NativeCause:   causes[0],
		PortableCause: causes[1],
	}
}

// GetParser returns a parser for the language, reusing a pooled instance
// when one is idle.
func (d *Detector) GetParser(ctx context.Context, desc api.GrammarDescriptor) (*Parser, error) {
	lang, err := d.language(ctx, desc)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	pl, ok := d.pools[desc.Name]
	if !ok {
		pl = newPool(d.poolSize)
		d.pools[desc.Name] = pl
	}
	d.mu.Unlock()

	if p := pl.get(); p != nil {
		return p, nil
	}

	inner := sitter.NewParser()
	inner.SetLanguage(lang)
	return &Parser{Language: desc.Name, inner: inner}, nil
}

// Release returns a healthy parser to its language pool.
func (d *Detector) Release(p *Parser) {
	if p == nil || p.inner == nil {
		return
	}
	d.mu.Lock()
	pl := d.pools[p.Language]
	d.mu.Unlock()
	if pl == nil || !pl.put(p) {
		p.Close()
	}
}

// Dispose destroys a parser that failed mid-parse; the next GetParser
// creates a fresh instance.
func (d *Detector) Dispose(p *Parser) {
	if p != nil {
		p.Close()
	}
}

// Close drains every pool.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pl := range d.pools {
		pl.drain()
	}
	d.pools = make(map[string]*pool)
}

// errNoNativeModule marks descriptors without a compiled-in grammar.
func errNoNativeModule(name string) error {
	return fmt.Errorf("no native grammar module linked for %q", name)
}
