package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/grammar"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	mgr := grammar.NewManager(t.TempDir(), grammar.WithRetry(1, time.Millisecond))
	d := NewDetector(mgr, 2)
	t.Cleanup(d.Close)
	return d
}

func goDescriptor() api.GrammarDescriptor {
	return api.GrammarDescriptor{Name: "go", Extensions: []string{".go"}, NativeModule: "go"}
}

func TestNativeParserParses(t *testing.T) {
	d := testDetector(t)

	p, err := d.GetParser(context.Background(), goDescriptor())
	require.NoError(t, err)
	defer d.Release(p)

	tree, err := p.Parse(context.Background(), []byte("package main\n"))
	require.NoError(t, err)
	defer tree.Close()
	assert.Equal(t, "source_file", tree.RootNode().Type())
}

func TestAllNativeModulesResolve(t *testing.T) {
	rt := newNativeRuntime()
	for name := range nativeModules {
		lang, err := rt.Load(context.Background(), api.GrammarDescriptor{Name: name, NativeModule: name})
		require.NoError(t, err, name)
		assert.NotNil(t, lang, name)
	}
}

func TestPoolReusesReleasedParser(t *testing.T) {
	d := testDetector(t)

	p1, err := d.GetParser(context.Background(), goDescriptor())
	require.NoError(t, err)
	d.Release(p1)

	p2, err := d.GetParser(context.Background(), goDescriptor())
	require.NoError(t, err)
	defer d.Release(p2)
	assert.Same(t, p1, p2, "released parser is handed out again FIFO")
}

func TestPoolCapacityBounded(t *testing.T) {
	d := testDetector(t)
	desc := goDescriptor()

	var parsers []*Parser
	for i := 0; i < 4; i++ {
		p, err := d.GetParser(context.Background(), desc)
		require.NoError(t, err)
		parsers = append(parsers, p)
	}
	// Releasing more than capacity closes the overflow instead of leaking.
	for _, p := range parsers {
		d.Release(p)
	}

	p, err := d.GetParser(context.Background(), desc)
	require.NoError(t, err)
	d.Release(p)
}

func TestDisposedParserNotPooled(t *testing.T) {
	d := testDetector(t)

	p1, err := d.GetParser(context.Background(), goDescriptor())
	require.NoError(t, err)
	d.Dispose(p1)

	p2, err := d.GetParser(context.Background(), goDescriptor())
	require.NoError(t, err)
	defer d.Release(p2)
	assert.NotSame(t, p1, p2)
}

func TestBothRuntimesFailingRaisesParserLoadError(t *testing.T) {
	d := testDetector(t)

	// No native module, and a dead download endpoint for the portable path.
	desc := api.GrammarDescriptor{
		Name:        "kotlin",
		SourceURL:   "http://127.0.0.1:1/tree-sitter-kotlin.so",
		ArtifactExt: ".so",
		CSymbol:     "tree_sitter_kotlin",
	}

	_, err := d.GetParser(context.Background(), desc)
	var ple *coreerr.ParserLoadError
	require.ErrorAs(t, err, &ple)
	assert.Equal(t, "kotlin", ple.Language)
	assert.Error(t, ple.NativeCause)
	assert.Error(t, ple.PortableCause)
	assert.NotEmpty(t, ple.ArtifactPath)
}

func TestLanguageCachedAcrossParsers(t *testing.T) {
	d := testDetector(t)
	desc := goDescriptor()

	lang1, err := d.language(context.Background(), desc)
	require.NoError(t, err)
	lang2, err := d.language(context.Background(), desc)
	require.NoError(t, err)
	assert.Same(t, lang1, lang2)
}
