package runtime

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/internal/grammar"
)

// portableRuntime loads grammar shared libraries produced by the grammar
// manager and resolves their exported language constructor. The library
// handle is kept open for the life of the process; tree-sitter language
// pointers must outlive every tree parsed with them.
type portableRuntime struct {
	grammars *grammar.Manager

	mu     sync.Mutex
	loaded map[string]*sitter.Language
}

func newPortableRuntime(mgr *grammar.Manager) *portableRuntime {
	return &portableRuntime{
		grammars: mgr,
		loaded:   make(map[string]*sitter.Language),
	}
}

func (*portableRuntime) Name() string { return "portable" }

func (r *portableRuntime) Load(ctx context.Context, d api.GrammarDescriptor) (*sitter.Language, error) {
	r.mu.Lock()
	if lang, ok := r.loaded[d.Name]; ok {
		r.mu.Unlock()
		return lang, nil
	}
	r.mu.Unlock()

	if d.CSymbol == "" {
		return nil, fmt.Errorf("language %q has no grammar constructor symbol", d.Name)
	}

	artifact, err := r.grammars.Acquire(ctx, d)
	if err != nil {
		return nil, err
	}

	lang, err := openLanguage(artifact, d.CSymbol)
	if err != nil {
		return nil, fmt.Errorf("grammar %q: %w", d.Name, err)
	}

	r.mu.Lock()
	r.loaded[d.Name] = lang
	r.mu.Unlock()
	return lang, nil
}
