// Package api defines the public node model, configuration, and result
// types of the parsing core. Collaborators (CLI, servers, watchers) consume
// these types; the machinery producing them lives under internal/.
package api

import (
	"time"

	"github.com/agentic-research/astcore/coreerr"
)

// Position locates a point in a source file. Lines are 1-based; columns
// are 0-based codepoint offsets into the raw bytes of the line.
type Position struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// Before reports whether p precedes q lexicographically by (line, column).
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// After reports whether p follows q.
func (p Position) After(q Position) bool { return q.Before(p) }

// NodeType is the closed set of normalized node categories. Raw grammar
// kinds map onto these per language; the original kind is retained in
// metadata under "rawKind".
type NodeType string

const (
	TypeFile        NodeType = "FILE"
	TypeModule      NodeType = "MODULE"
	TypeNamespace   NodeType = "NAMESPACE"
	TypeImport      NodeType = "IMPORT"
	TypeExport      NodeType = "EXPORT"
	TypeClass       NodeType = "CLASS"
	TypeInterface   NodeType = "INTERFACE"
	TypeFunction    NodeType = "FUNCTION"
	TypeMethod      NodeType = "METHOD"
	TypeConstructor NodeType = "CONSTRUCTOR"
	TypeProperty    NodeType = "PROPERTY"
	TypeVariable    NodeType = "VARIABLE"
	TypeParameter   NodeType = "PARAMETER"
	TypeBlock       NodeType = "BLOCK"
	TypeStatement   NodeType = "STATEMENT"
	TypeExpression  NodeType = "EXPRESSION"
	TypeComment     NodeType = "COMMENT"
	TypeError       NodeType = "ERROR"
)

// nodeTypes is the membership set for validation.
var nodeTypes = map[NodeType]bool{
	TypeFile: true, TypeModule: true, TypeNamespace: true, TypeImport: true,
	TypeExport: true, TypeClass: true, TypeInterface: true, TypeFunction: true,
	TypeMethod: true, TypeConstructor: true, TypeProperty: true, TypeVariable: true,
	TypeParameter: true, TypeBlock: true, TypeStatement: true, TypeExpression: true,
	TypeComment: true, TypeError: true,
}

// Valid reports whether t is a member of the closed NodeType set.
func (t NodeType) Valid() bool { return nodeTypes[t] }

// Significance is the discrete priority level assigned to each node,
// used as a filter by downstream consumers.
type Significance string

const (
	Critical Significance = "CRITICAL"
	High     Significance = "HIGH"
	Medium   Significance = "MEDIUM"
	Low      Significance = "LOW"
	Minimal  Significance = "MINIMAL"
)

var significanceRank = map[Significance]int{
	Critical: 5,
	High:     4,
	Medium:   3,
	Low:      2,
	Minimal:  1,
}

// Rank returns the ordering value of s (CRITICAL highest). Unknown values
// rank zero, below MINIMAL.
func (s Significance) Rank() int { return significanceRank[s] }

// Valid reports whether s is a member of the significance set.
func (s Significance) Valid() bool { return significanceRank[s] != 0 }

// ScopeEntry is one element of a node's enclosing scope chain.
type ScopeEntry struct {
	Type NodeType `json:"type"`
	Name string   `json:"name"`
}

// NodeMetadata carries the enrichment attached by the metadata extractor.
// Empty collections are permitted; absent fields serialize as omitted.
type NodeMetadata struct {
	Language         string         `json:"language,omitempty"`
	Scope            []ScopeEntry   `json:"scope,omitempty"`
	Modifiers        []string       `json:"modifiers,omitempty"`
	Imports          []string       `json:"imports,omitempty"`
	Exports          []string       `json:"exports,omitempty"`
	Docstring        string         `json:"docstring,omitempty"`
	Annotations      []string       `json:"annotations,omitempty"`
	LanguageSpecific map[string]any `json:"languageSpecific,omitempty"`
}

// HasModifier reports whether the given modifier is present.
func (m *NodeMetadata) HasModifier(mod string) bool {
	for _, have := range m.Modifiers {
		if have == mod {
			return true
		}
	}
	return false
}

// ASTNode is the uniform annotated node the core produces for every
// retained syntax tree node.
type ASTNode struct {
	ID           string       `json:"id"`
	Type         NodeType     `json:"type"`
	Name         string       `json:"name,omitempty"`
	FilePath     string       `json:"filePath"`
	Start        Position     `json:"start"`
	End          Position     `json:"end"`
	Parent       string       `json:"parent,omitempty"`
	Children     []string     `json:"children"`
	Metadata     NodeMetadata `json:"metadata"`
	SourceText   string       `json:"sourceText,omitempty"`
	Signature    string       `json:"signature,omitempty"`
	Significance Significance `json:"significance"`
	Complexity   *int         `json:"complexity,omitempty"`
}

// Contains reports whether other's span is inside n's span.
func (n *ASTNode) Contains(other *ASTNode) bool {
	return !other.Start.Before(n.Start) && !n.End.Before(other.End)
}

// ProcessingStats are the per-file pipeline statistics.
type ProcessingStats struct {
	TotalNodes          int                  `json:"totalNodes"`
	NodesByType         map[NodeType]int     `json:"nodesByType,omitempty"`
	NodesBySignificance map[Significance]int `json:"nodesBySignificance,omitempty"`
	ElapsedMs           int64                `json:"elapsedMs"`
	PeakMemoryDelta     int64                `json:"peakMemoryDelta,omitempty"`
	NodesPerSecond      float64              `json:"nodesPerSecond,omitempty"`
}

// FileResult is the output of the per-file pipeline for one source file.
type FileResult struct {
	FilePath       string
	Language       string
	Success        bool
	Nodes          []*ASTNode
	Errors         []coreerr.CoreError
	FileHash       string
	Stats          ProcessingStats
	SerializedPath string
}

// Root returns the FILE root node, or nil for an empty result.
func (r *FileResult) Root() *ASTNode {
	for _, n := range r.Nodes {
		if n.Parent == "" {
			return n
		}
	}
	return nil
}

// NodeByID returns the node with the given id, or nil.
func (r *FileResult) NodeByID(id string) *ASTNode {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// GrammarDescriptor tells the grammar manager and the runtime layer how to
// obtain a parser for one language.
type GrammarDescriptor struct {
	// Name is the canonical lower-case language name.
	Name string `json:"name"`
	// Extensions are the file extensions (with leading dot) mapped to this
	// language. Unique across the registry.
	Extensions []string `json:"extensions"`
	// NativeModule names the compiled-in grammar binding, empty when the
	// language is only available through the portable runtime.
	NativeModule string `json:"nativeModule,omitempty"`
	// SourceURL is where the portable grammar artifact is downloaded from.
	SourceURL string `json:"sourceUrl,omitempty"`
	// ExpectedHash is the artifact's sha256, empty for trust-on-first-use.
	ExpectedHash string `json:"expectedHash,omitempty"`
	// ArtifactExt is the artifact filename extension (".so", ".dylib").
	ArtifactExt string `json:"artifactExt,omitempty"`
	// CSymbol is the exported grammar constructor in the artifact
	// (e.g. "tree_sitter_kotlin").
	CSymbol string `json:"cSymbol,omitempty"`
}

// GrammarRecord is the metadata persisted next to each cached grammar
// artifact as metadata.json. Timestamps are ISO-8601 UTC.
type GrammarRecord struct {
	Language     string    `json:"language"`
	Version      string    `json:"version"`
	Hash         string    `json:"hash"`
	ActualHash   string    `json:"actualHash,omitempty"`
	URL          string    `json:"url"`
	DownloadedAt time.Time `json:"downloadedAt"`
	LastVerified time.Time `json:"lastVerified"`
	ArtifactPath string    `json:"artifactPath"`
}
