package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

func TestMissingSchemaMarkerTreatedAsOldest(t *testing.T) {
	// Bundles written before the marker existed migrate from 1.0.0.
	old := `{
		"filePath": "/t/ancient.go",
		"language": "go",
		"nodes": [
			{"id": "aaaa", "kind": "CLASS", "filePath": "/t/ancient.go",
			 "start": {"line": 1, "column": 0}, "end": {"line": 2, "column": 0}, "children": []}
		],
		"metadata": {"fileHash": "00", "nodeCount": 1, "stats": {"totalNodes": 1, "elapsedMs": 0}}
	}`

	s := New(api.SerializerConfig{})
	decoded, err := s.DeserializeFile([]byte(old))
	require.NoError(t, err)
	require.Len(t, decoded.Nodes, 1)
	assert.Equal(t, api.TypeClass, decoded.Nodes[0].Type)
	assert.Equal(t, api.Low, decoded.Nodes[0].Significance)
}

func TestStandaloneNodeMigration(t *testing.T) {
	old := `{"$schema": "1.0.0", "id": "bbbb", "kind": "METHOD", "filePath": "/t/m.go",
		"start": {"line": 3, "column": 0}, "end": {"line": 4, "column": 0}, "children": []}`

	s := New(api.SerializerConfig{})
	node, err := s.DeserializeNode([]byte(old))
	require.NoError(t, err)
	assert.Equal(t, api.TypeMethod, node.Type)
	assert.Equal(t, api.Low, node.Significance)
}

func TestMigrationPreservesExistingSignificance(t *testing.T) {
	old := `{
		"$schema": "1.0.0",
		"filePath": "/t/sig.go",
		"language": "go",
		"nodes": [
			{"$schema": "1.0.0", "id": "cccc", "kind": "FUNCTION", "filePath": "/t/sig.go",
			 "significance": "CRITICAL",
			 "start": {"line": 1, "column": 0}, "end": {"line": 2, "column": 0}, "children": []}
		],
		"metadata": {"fileHash": "00", "nodeCount": 1, "stats": {}}
	}`

	s := New(api.SerializerConfig{})
	decoded, err := s.DeserializeFile([]byte(old))
	require.NoError(t, err)
	assert.Equal(t, api.Critical, decoded.Nodes[0].Significance)
}

func TestUnknownAncientVersionHasNoPath(t *testing.T) {
	old := `{"$schema": "0.4.0", "filePath": "/t/x.go", "language": "go", "nodes": []}`

	s := New(api.SerializerConfig{})
	_, err := s.DeserializeFile([]byte(old))
	var sme *coreerr.SchemaMigrationError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, "0.4.0", sme.FoundVersion)
	assert.Equal(t, "/t/x.go", sme.FilePath)
}

func TestCurrentVersionPassesThroughUntouched(t *testing.T) {
	s := New(api.SerializerConfig{})
	data, err := s.SerializeFile(sampleResult())
	require.NoError(t, err)

	migrated, err := migrateIfNeeded(data, "")
	require.NoError(t, err)
	assert.Equal(t, data, migrated, "current-version bundles are not re-encoded")
}
