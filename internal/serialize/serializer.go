// Package serialize encodes file results into versioned JSON bundles and
// decodes them back, applying schema migrations where registered. The
// document's $schema field is the only external compatibility contract.
package serialize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = "1.1.0"

// Document is the file-level bundle.
type Document struct {
	Schema       string            `json:"$schema"`
	FilePath     string            `json:"filePath"`
	Language     string            `json:"language"`
	Nodes        []*SerializedNode `json:"nodes"`
	Metadata     DocumentMeta      `json:"metadata"`
	SerializedAt string            `json:"serializedAt"`
}

// DocumentMeta carries the bundle-level metadata block.
type DocumentMeta struct {
	FileHash  string              `json:"fileHash"`
	NodeCount int                 `json:"nodeCount"`
	Stats     api.ProcessingStats `json:"stats"`
}

// SerializedNode mirrors ASTNode with its own $schema so a single node
// can be decoded standalone.
type SerializedNode struct {
	Schema string `json:"$schema"`
	api.ASTNode
}

// Serializer encodes and decodes bundles under one configuration.
type Serializer struct {
	cfg api.SerializerConfig
	now func() time.Time
}

// New creates a serializer.
func New(cfg api.SerializerConfig) *Serializer {
	return &Serializer{cfg: cfg, now: time.Now}
}

// SerializeNode encodes a single node with its schema marker.
func (s *Serializer) SerializeNode(n *api.ASTNode) ([]byte, error) {
	if s.cfg.ValidateOnSerialize {
		if err := ValidateNodes(n.FilePath, []*api.ASTNode{n}); err != nil {
			return nil, err
		}
	}
	return json.Marshal(&SerializedNode{Schema: CurrentVersion, ASTNode: *n})
}

// DeserializeNode decodes a single node, migrating old versions.
func (s *Serializer) DeserializeNode(data []byte) (*api.ASTNode, error) {
	migrated, err := migrateIfNeeded(data, "")
	if err != nil {
		return nil, err
	}
	var sn SerializedNode
	if err := json.Unmarshal(migrated, &sn); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	node := sn.ASTNode
	if s.cfg.ValidateOnDeserialize {
		if err := ValidateNodes(node.FilePath, []*api.ASTNode{&node}); err != nil {
			return nil, err
		}
	}
	return &node, nil
}

// SerializeFile encodes a FileResult into a bundle document. The returned
// bytes always end with a newline.
func (s *Serializer) SerializeFile(r *api.FileResult) ([]byte, error) {
	if s.cfg.ValidateOnSerialize {
		if err := ValidateNodes(r.FilePath, r.Nodes); err != nil {
			return nil, err
		}
	}

	doc := &Document{
		Schema:   CurrentVersion,
		FilePath: r.FilePath,
		Language: r.Language,
		Nodes:    make([]*SerializedNode, len(r.Nodes)),
		Metadata: DocumentMeta{
			FileHash:  r.FileHash,
			NodeCount: len(r.Nodes),
			Stats:     r.Stats,
		},
		SerializedAt: s.now().UTC().Format(time.RFC3339),
	}
	for i, n := range r.Nodes {
		doc.Nodes[i] = &SerializedNode{Schema: CurrentVersion, ASTNode: *n}
	}

	var data []byte
	var err error
	if s.cfg.Pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return append(data, '\n'), nil
}

// DeserializeFile decodes a bundle, migrating old schema versions first.
func (s *Serializer) DeserializeFile(data []byte) (*api.FileResult, error) {
	migrated, err := migrateIfNeeded(data, "")
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}

	r := &api.FileResult{
		FilePath: doc.FilePath,
		Language: doc.Language,
		Success:  true,
		FileHash: doc.Metadata.FileHash,
		Stats:    doc.Metadata.Stats,
		Nodes:    make([]*api.ASTNode, len(doc.Nodes)),
	}
	for i, sn := range doc.Nodes {
		node := sn.ASTNode
		r.Nodes[i] = &node
	}

	if s.cfg.ValidateOnDeserialize {
		if err := ValidateNodes(r.FilePath, r.Nodes); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SaveToFile atomically writes the serialized bundle for r at path.
func (s *Serializer) SaveToFile(r *api.FileResult, path string) error {
	data, err := s.SerializeFile(r)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// LoadFromFile reads and decodes a bundle from disk.
func (s *Serializer) LoadFromFile(path string) (*api.FileResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, &coreerr.IOError{FilePath: path, Op: "read", Cause: err}
	}
	return s.DeserializeFile(data)
}

// ValidateRoundTrip reports whether decoded equals original on every
// specified field. Used by tests and by includeValidateRoundTrip runs.
func ValidateRoundTrip(original, decoded []*api.ASTNode) bool {
	if len(original) != len(decoded) {
		return false
	}
	for i := range original {
		a, errA := json.Marshal(original[i])
		b, errB := json.Marshal(decoded[i])
		if errA != nil || errB != nil || string(a) != string(b) {
			return false
		}
	}
	return true
}

// parseGeneric decodes a bundle into generic maps for version sniffing
// and migration, without committing to the typed document shape.
func parseGeneric(data []byte) (any, error) {
	return oj.Parse(data)
}
