package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
)

func TestTableLookups(t *testing.T) {
	cases := []struct {
		language string
		rawKind  string
		want     api.NodeType
	}{
		{"go", "function_declaration", api.TypeFunction},
		{"go", "method_declaration", api.TypeMethod},
		{"go", "import_spec", api.TypeImport},
		{"go", "package_clause", api.TypeModule},
		{"javascript", "class_declaration", api.TypeClass},
		{"javascript", "arrow_function", api.TypeFunction},
		{"typescript", "interface_declaration", api.TypeInterface},
		{"python", "class_definition", api.TypeClass},
		{"rust", "trait_item", api.TypeInterface},
		{"c", "function_definition", api.TypeFunction},
		{"c", "preproc_include", api.TypeImport},
		{"java", "constructor_declaration", api.TypeConstructor},
		{"csharp", "namespace_declaration", api.TypeNamespace},
	}

	for _, tc := range cases {
		got, ok := Classify(tc.language, tc.rawKind, Hints{})
		require.True(t, ok, "%s/%s should classify", tc.language, tc.rawKind)
		assert.Equal(t, tc.want, got, "%s/%s", tc.language, tc.rawKind)
	}
}

func TestContextualParameterMapping(t *testing.T) {
	got, ok := Classify("javascript", "identifier", Hints{ParentKind: "formal_parameters"})
	require.True(t, ok)
	assert.Equal(t, api.TypeParameter, got)

	// The same identifier elsewhere is an atomic token.
	_, ok = Classify("javascript", "identifier", Hints{ParentKind: "binary_expression"})
	assert.False(t, ok)
}

func TestPassthroughWrappersProduceNoNode(t *testing.T) {
	for _, kind := range []string{"formal_parameters", "parameter_list", "argument_list"} {
		_, ok := Classify("go", kind, Hints{})
		assert.False(t, ok, "%s should be transparent", kind)
	}
}

func TestFallbackBuckets(t *testing.T) {
	// Unknown kind with a body reads as a block.
	got, ok := Classify("go", "mystery_construct", Hints{HasBody: true})
	require.True(t, ok)
	assert.Equal(t, api.TypeBlock, got)

	// Statement-like suffix.
	got, _ = Classify("go", "defer_statement", Hints{})
	assert.Equal(t, api.TypeStatement, got)

	// Direct child of a declaration container.
	got, _ = Classify("go", "mystery", Hints{InDeclarationList: true})
	assert.Equal(t, api.TypeStatement, got)

	// Everything else is an expression.
	got, _ = Classify("go", "mystery", Hints{})
	assert.Equal(t, api.TypeExpression, got)
}

func TestUnknownLanguageStillClassifies(t *testing.T) {
	got, ok := Classify("fortran", "comment", Hints{})
	require.True(t, ok)
	assert.Equal(t, api.TypeComment, got)

	got, ok = Classify("fortran", "subroutine_statement", Hints{})
	require.True(t, ok)
	assert.Equal(t, api.TypeStatement, got)
	assert.False(t, Supported("fortran"))
	assert.True(t, Supported("go"))
}

func TestErrorKind(t *testing.T) {
	got, ok := Classify("go", "ERROR", Hints{})
	require.True(t, ok)
	assert.Equal(t, api.TypeError, got)
}

func TestSignificanceDefaults(t *testing.T) {
	md := &api.NodeMetadata{}
	assert.Equal(t, api.High, Significance(api.TypeFunction, "go", md))
	assert.Equal(t, api.High, Significance(api.TypeClass, "python", md))
	assert.Equal(t, api.Medium, Significance(api.TypeImport, "go", md))
	assert.Equal(t, api.Low, Significance(api.TypeVariable, "go", md))
	assert.Equal(t, api.Low, Significance(api.TypeParameter, "go", md))
	assert.Equal(t, api.Minimal, Significance(api.TypeComment, "go", md))
	assert.Equal(t, api.Minimal, Significance(api.TypeExpression, "go", md))
}

func TestSignificanceExportedOverrides(t *testing.T) {
	exported := &api.NodeMetadata{Modifiers: []string{"exported"}}
	assert.Equal(t, api.Critical, Significance(api.TypeClass, "go", exported))
	assert.Equal(t, api.Critical, Significance(api.TypeModule, "go", exported))
	assert.Equal(t, api.Medium, Significance(api.TypeVariable, "go", exported))
	// Functions stay HIGH even when exported.
	assert.Equal(t, api.High, Significance(api.TypeFunction, "go", exported))
}

func TestSignificancePrivateDemotes(t *testing.T) {
	private := &api.NodeMetadata{Modifiers: []string{"private"}}
	assert.Equal(t, api.Medium, Significance(api.TypeFunction, "java", private))
	// MINIMAL cannot demote further.
	assert.Equal(t, api.Minimal, Significance(api.TypeComment, "java", private))
}

func TestSignificanceDocstringPromotesLowOnly(t *testing.T) {
	documented := &api.NodeMetadata{Docstring: "does a thing"}
	assert.Equal(t, api.Low, Significance(api.TypeExpression, "python", documented))
	assert.Equal(t, api.Medium, Significance(api.TypeVariable, "python", documented))
	// HIGH levels are not promoted by documentation alone.
	assert.Equal(t, api.High, Significance(api.TypeFunction, "python", documented))
}

func TestSignificanceTotal(t *testing.T) {
	// Unknown type still yields a level.
	assert.Equal(t, api.Low, Significance(api.NodeType("WIDGET"), "go", nil))
}
