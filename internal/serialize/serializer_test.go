package serialize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

func intp(v int) *int { return &v }

func sampleResult() *api.FileResult {
	root := &api.ASTNode{
		ID:       "aaaa0000aaaa0000aaaa0000aaaa0000",
		Type:     api.TypeFile,
		FilePath: "/t/add.js",
		Start:    api.Position{Line: 1, Column: 0},
		End:      api.Position{Line: 3, Column: 0},
		Children: []string{"bbbb0000bbbb0000bbbb0000bbbb0000"},
		Metadata: api.NodeMetadata{
			Language:         "javascript",
			LanguageSpecific: map[string]any{"rawKind": "program"},
		},
		Significance: api.High,
	}
	fn := &api.ASTNode{
		ID:       "bbbb0000bbbb0000bbbb0000bbbb0000",
		Type:     api.TypeFunction,
		Name:     "add",
		FilePath: "/t/add.js",
		Start:    api.Position{Line: 1, Column: 0},
		End:      api.Position{Line: 1, Column: 40},
		Parent:   root.ID,
		Children: []string{},
		Metadata: api.NodeMetadata{
			Language:         "javascript",
			Modifiers:        []string{"export", "exported"},
			Docstring:        "adds two numbers",
			LanguageSpecific: map[string]any{"rawKind": "function_declaration"},
		},
		Signature:    "add(a, b)",
		Significance: api.High,
		Complexity:   intp(1),
	}
	return &api.FileResult{
		FilePath: "/t/add.js",
		Language: "javascript",
		Success:  true,
		Nodes:    []*api.ASTNode{root, fn},
		FileHash: strings.Repeat("ab", 32),
		Stats:    api.ProcessingStats{TotalNodes: 2, ElapsedMs: 4},
	}
}

func TestSerializeFileDocumentShape(t *testing.T) {
	s := New(api.SerializerConfig{})
	data, err := s.SerializeFile(sampleResult())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"), "bundle must end with a newline")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, CurrentVersion, raw["$schema"])
	assert.Equal(t, "/t/add.js", raw["filePath"])
	assert.Equal(t, "javascript", raw["language"])
	assert.Contains(t, raw, "serializedAt")

	meta := raw["metadata"].(map[string]any)
	assert.Equal(t, float64(2), meta["nodeCount"])
	assert.Equal(t, strings.Repeat("ab", 32), meta["fileHash"])

	nodes := raw["nodes"].([]any)
	require.Len(t, nodes, 2)
	first := nodes[0].(map[string]any)
	assert.Equal(t, CurrentVersion, first["$schema"], "each node carries its own $schema")
}

func TestRoundTripEquality(t *testing.T) {
	s := New(api.SerializerConfig{})
	original := sampleResult()

	data, err := s.SerializeFile(original)
	require.NoError(t, err)

	decoded, err := s.DeserializeFile(data)
	require.NoError(t, err)

	assert.Equal(t, original.FilePath, decoded.FilePath)
	assert.Equal(t, original.Language, decoded.Language)
	assert.Equal(t, original.FileHash, decoded.FileHash)
	assert.True(t, ValidateRoundTrip(original.Nodes, decoded.Nodes))

	// A mutated decode is detected.
	decoded.Nodes[1].Name = "sub"
	assert.False(t, ValidateRoundTrip(original.Nodes, decoded.Nodes))
}

func TestSerializeNodeStandalone(t *testing.T) {
	s := New(api.SerializerConfig{})
	n := sampleResult().Nodes[1]

	data, err := s.SerializeNode(n)
	require.NoError(t, err)

	back, err := s.DeserializeNode(data)
	require.NoError(t, err)
	assert.Equal(t, n.ID, back.ID)
	assert.Equal(t, n.Signature, back.Signature)
	require.NotNil(t, back.Complexity)
	assert.Equal(t, 1, *back.Complexity)
}

func TestUnknownNewerVersionRejected(t *testing.T) {
	s := New(api.SerializerConfig{})
	data, err := s.SerializeFile(sampleResult())
	require.NoError(t, err)

	corrupted := strings.Replace(string(data), `"$schema":"1.1.0"`, `"$schema":"9999.0.0"`, 1)
	require.NotEqual(t, string(data), corrupted)

	_, err = s.DeserializeFile([]byte(corrupted))
	var sme *coreerr.SchemaMigrationError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, "9999.0.0", sme.FoundVersion)
	assert.Equal(t, CurrentVersion, sme.CurrentVersion)
}

func TestMigrationFrom100(t *testing.T) {
	old := `{
		"$schema": "1.0.0",
		"filePath": "/t/old.js",
		"language": "javascript",
		"nodes": [
			{"$schema": "1.0.0", "id": "cccc", "kind": "FUNCTION", "filePath": "/t/old.js",
			 "start": {"line": 1, "column": 0}, "end": {"line": 2, "column": 0}, "children": []}
		],
		"metadata": {"fileHash": "ff", "nodeCount": 1, "stats": {"totalNodes": 1, "elapsedMs": 0}},
		"serializedAt": "2024-01-01T00:00:00Z"
	}`

	s := New(api.SerializerConfig{})
	decoded, err := s.DeserializeFile([]byte(old))
	require.NoError(t, err)
	require.Len(t, decoded.Nodes, 1)
	assert.Equal(t, api.TypeFunction, decoded.Nodes[0].Type)
	assert.Equal(t, api.Low, decoded.Nodes[0].Significance, "pre-1.1 bundles default significance to LOW")
}

func TestValidateOnSerializeListsAllOffenders(t *testing.T) {
	s := New(api.SerializerConfig{ValidateOnSerialize: true})
	r := sampleResult()
	r.Nodes[0].ID = ""
	r.Nodes[1].End = api.Position{Line: 1, Column: 0}
	r.Nodes[1].Start = api.Position{Line: 1, Column: 40} // end precedes start

	_, err := s.SerializeFile(r)
	var sve *coreerr.SerializationValidationError
	require.ErrorAs(t, err, &sve)
	assert.GreaterOrEqual(t, len(sve.Offenders), 2)
}

func TestValidateOnDeserializeFlagsBadPositions(t *testing.T) {
	plain := New(api.SerializerConfig{})
	data, err := plain.SerializeFile(sampleResult())
	require.NoError(t, err)

	// end precedes start on the function node
	mutated := strings.Replace(string(data),
		`"end":{"line":1,"column":40}`, `"end":{"line":1,"column":0}`, 1)
	mutated = strings.Replace(mutated,
		`"start":{"line":1,"column":0},"end":{"line":1,"column":0},"parent"`,
		`"start":{"line":1,"column":40},"end":{"line":1,"column":0},"parent"`, 1)
	require.NotEqual(t, string(data), mutated)

	strict := New(api.SerializerConfig{ValidateOnDeserialize: true})
	_, err = strict.DeserializeFile([]byte(mutated))
	var sve *coreerr.SerializationValidationError
	require.ErrorAs(t, err, &sve)
	assert.Contains(t, sve.Offenders, "bbbb0000bbbb0000bbbb0000bbbb0000")
}

func TestSaveToFileAtomicAndParentDirs(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "deep", "nested", "out.ast.json")

	s := New(api.SerializerConfig{Pretty: true})
	require.NoError(t, s.SaveToFile(sampleResult(), target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.NoFileExists(t, target+".tmp")

	back, err := s.LoadFromFile(target)
	require.NoError(t, err)
	assert.Len(t, back.Nodes, 2)
}

func TestPrettyOutputIndented(t *testing.T) {
	s := New(api.SerializerConfig{Pretty: true})
	data, err := s.SerializeFile(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"$schema\"")
}

func TestInvariantValidation(t *testing.T) {
	r := sampleResult()
	require.NoError(t, ValidateInvariants(r.FilePath, r.Nodes))

	// Orphan parent reference.
	r.Nodes[1].Parent = "deadbeefdeadbeefdeadbeefdeadbeef"
	err := ValidateInvariants(r.FilePath, r.Nodes)
	var sve *coreerr.SerializationValidationError
	require.ErrorAs(t, err, &sve)
}

func TestInvariantValidationSpanContainment(t *testing.T) {
	r := sampleResult()
	// Child escapes the root span.
	r.Nodes[1].End = api.Position{Line: 99, Column: 0}
	err := ValidateInvariants(r.FilePath, r.Nodes)
	require.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, compareVersions("1.1.0", "1.1.0"))
	assert.Equal(t, -1, compareVersions("1.0.0", "1.1.0"))
	assert.Equal(t, 1, compareVersions("2.0.0", "1.9.9"))
	assert.Equal(t, 1, compareVersions("9999.0.0", "1.1.0"))
}
