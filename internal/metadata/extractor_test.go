package metadata

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/internal/walker"
)

func extract(t *testing.T, lang *sitter.Language, langName string, src []byte, opts Options) *walker.Result {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	res := walker.Walk(tree, src, "/t/input", langName, walker.Config{ClassifyNodes: true})
	Extract(res.Nodes, res.Raw, res.ParentIdx, src, langName, opts)
	return res
}

func nodeOf(res *walker.Result, nt api.NodeType, name string) *api.ASTNode {
	for _, n := range res.Nodes {
		if n.Type == nt && n.Name == name {
			return n
		}
	}
	return nil
}

func TestScopeChain(t *testing.T) {
	src := []byte("class Box:\n    def open(self):\n        pass\n")
	res := extract(t, python.GetLanguage(), "python", src, Options{})

	method := nodeOf(res, api.TypeFunction, "open")
	require.NotNil(t, method)
	require.Len(t, method.Metadata.Scope, 1)
	assert.Equal(t, api.TypeClass, method.Metadata.Scope[0].Type)
	assert.Equal(t, "Box", method.Metadata.Scope[0].Name)

	cls := nodeOf(res, api.TypeClass, "Box")
	require.NotNil(t, cls)
	assert.Empty(t, cls.Metadata.Scope, "top-level declarations have an empty scope chain")
}

func TestGoExportedModifier(t *testing.T) {
	src := []byte("package main\n\nfunc Public() {}\n\nfunc hidden() {}\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{})

	pub := nodeOf(res, api.TypeFunction, "Public")
	require.NotNil(t, pub)
	assert.True(t, pub.Metadata.HasModifier("exported"))

	hidden := nodeOf(res, api.TypeFunction, "hidden")
	require.NotNil(t, hidden)
	assert.False(t, hidden.Metadata.HasModifier("exported"))
}

func TestTypeScriptExportAndAsync(t *testing.T) {
	src := []byte("export async function fetchIt(url: string): Promise<void> {}\n")
	res := extract(t, typescript.GetLanguage(), "typescript", src, Options{Signatures: true})

	fn := nodeOf(res, api.TypeFunction, "fetchIt")
	require.NotNil(t, fn)
	assert.True(t, fn.Metadata.HasModifier("exported"))
	assert.True(t, fn.Metadata.HasModifier("async"))
}

func TestSignatureTypeScript(t *testing.T) {
	src := []byte("function add(a: number, b: number): number { return a + b; }\n")
	res := extract(t, typescript.GetLanguage(), "typescript", src, Options{Signatures: true})

	fn := nodeOf(res, api.TypeFunction, "add")
	require.NotNil(t, fn)
	assert.Equal(t, "add(a: number, b: number): number", fn.Signature)
	assert.Equal(t, "function_declaration", fn.Metadata.LanguageSpecific["rawKind"])
}

func TestSignatureGo(t *testing.T) {
	src := []byte("package main\n\nfunc Add(a int, b int) int {\n\treturn a + b\n}\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{Signatures: true})

	fn := nodeOf(res, api.TypeFunction, "Add")
	require.NotNil(t, fn)
	assert.Equal(t, "Add(a int, b int) int", fn.Signature)
}

func TestGoImportSpecifiers(t *testing.T) {
	src := []byte("package main\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{})

	var specs []string
	for _, n := range res.Nodes {
		if n.Type == api.TypeImport {
			specs = append(specs, n.Metadata.Imports...)
		}
	}
	assert.Contains(t, specs, "fmt")
	assert.Contains(t, specs, "os")

	root := res.Nodes[0]
	assert.Contains(t, root.Metadata.Imports, "fmt", "FILE root aggregates imports")
}

func TestPythonDocstring(t *testing.T) {
	src := []byte("def greet(name):\n    \"\"\"Say hello politely.\"\"\"\n    return name\n")
	res := extract(t, python.GetLanguage(), "python", src, Options{})

	fn := nodeOf(res, api.TypeFunction, "greet")
	require.NotNil(t, fn)
	assert.Equal(t, "Say hello politely.", fn.Metadata.Docstring)
}

func TestGoPrecedingCommentDocstring(t *testing.T) {
	src := []byte("package main\n\n// Add sums two ints.\n// It never overflows in tests.\nfunc Add(a, b int) int { return a + b }\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{})

	fn := nodeOf(res, api.TypeFunction, "Add")
	require.NotNil(t, fn)
	assert.Contains(t, fn.Metadata.Docstring, "Add sums two ints.")
	assert.Contains(t, fn.Metadata.Docstring, "never overflows")
}

func TestPythonPrivateConvention(t *testing.T) {
	src := []byte("def _internal():\n    pass\n")
	res := extract(t, python.GetLanguage(), "python", src, Options{})

	fn := nodeOf(res, api.TypeFunction, "_internal")
	require.NotNil(t, fn)
	assert.True(t, fn.Metadata.HasModifier("private"))
}

func TestPythonDecoratorsAsAnnotations(t *testing.T) {
	src := []byte("@staticmethod\n@cached\ndef compute():\n    pass\n")
	res := extract(t, python.GetLanguage(), "python", src, Options{})

	fn := nodeOf(res, api.TypeFunction, "compute")
	require.NotNil(t, fn)
	require.Len(t, fn.Metadata.Annotations, 2)
	assert.Equal(t, "@staticmethod", fn.Metadata.Annotations[0])
	assert.Equal(t, "@cached", fn.Metadata.Annotations[1])
}

func TestComplexityMonotonic(t *testing.T) {
	straight := []byte("package main\n\nfunc F(a int) int {\n\treturn a\n}\n")
	branchy := []byte("package main\n\nfunc F(a int) int {\n\tif a > 0 {\n\t\treturn 1\n\t}\n\tfor i := 0; i < a; i++ {\n\t\tif i%2 == 0 && i > 2 {\n\t\t\treturn i\n\t\t}\n\t}\n\treturn 0\n}\n")

	rs := extract(t, golang.GetLanguage(), "go", straight, Options{Complexity: true})
	rb := extract(t, golang.GetLanguage(), "go", branchy, Options{Complexity: true})

	fs := nodeOf(rs, api.TypeFunction, "F")
	fb := nodeOf(rb, api.TypeFunction, "F")
	require.NotNil(t, fs)
	require.NotNil(t, fb)
	require.NotNil(t, fs.Complexity)
	require.NotNil(t, fb.Complexity)

	assert.Equal(t, 1, *fs.Complexity)
	// More branches can only raise the count.
	assert.Greater(t, *fb.Complexity, *fs.Complexity)
}

func TestGoReceiverLanguageSpecific(t *testing.T) {
	src := []byte("package main\n\ntype S struct{}\n\nfunc (s *S) Do() {}\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{})

	m := nodeOf(res, api.TypeMethod, "Do")
	require.NotNil(t, m)
	assert.Equal(t, "(s *S)", m.Metadata.LanguageSpecific["receiver"])
}

func TestExtractionNeverPanicsOnOddInput(t *testing.T) {
	src := []byte("package main\n\nfunc {\n")
	res := extract(t, golang.GetLanguage(), "go", src, Options{Signatures: true, Complexity: true})
	assert.NotEmpty(t, res.Nodes)
}
