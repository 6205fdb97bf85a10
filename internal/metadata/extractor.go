// Package metadata enriches walked nodes with scope chains, modifiers,
// imports, docstrings, annotations, signatures, and complexity. Every
// extraction is best-effort: failures degrade to absent fields, never to
// errors.
package metadata

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/astcore/api"
)

// Options gate the more expensive extractions.
type Options struct {
	Signatures bool
	Complexity bool
}

// declTypes are the node types treated as declarations for docstring,
// annotation, and modifier extraction.
var declTypes = map[api.NodeType]bool{
	api.TypeClass: true, api.TypeInterface: true, api.TypeFunction: true,
	api.TypeMethod: true, api.TypeConstructor: true, api.TypeProperty: true,
	api.TypeVariable: true, api.TypeModule: true, api.TypeNamespace: true,
}

var callableTypes = map[api.NodeType]bool{
	api.TypeFunction: true, api.TypeMethod: true, api.TypeConstructor: true,
}

// Extract enriches every node in place. raw and parentIdx come from the
// walker and are index-parallel with nodes.
func Extract(nodes []*api.ASTNode, raw []*sitter.Node, parentIdx []int, src []byte, language string, opts Options) {
	for i, n := range nodes {
		rn := raw[i]

		n.Metadata.Scope = scopeChain(nodes, parentIdx, i)

		if declTypes[n.Type] {
			n.Metadata.Modifiers = modifiers(n, rn, src, language)
			n.Metadata.Docstring = docstring(rn, src, language)
			n.Metadata.Annotations = annotations(rn, src)
		}

		switch n.Type {
		case api.TypeImport:
			if spec := importSpecifier(n, rn, src); spec != "" {
				n.Metadata.Imports = []string{spec}
			}
		case api.TypeExport:
			if name := exportedName(rn, src); name != "" {
				n.Metadata.Exports = []string{name}
			}
		}

		if opts.Signatures && callableTypes[n.Type] {
			n.Signature = signature(n, rn, src)
		}
		if opts.Complexity && callableTypes[n.Type] {
			c := complexity(rn, src)
			n.Complexity = &c
		}

		attachLanguageSpecific(n, rn, src, language)
	}

	// FILE roots aggregate after the main pass: IMPORT/EXPORT nodes must
	// already carry their specifiers when the root collects them.
	for _, n := range nodes {
		if n.Type == api.TypeFile {
			n.Metadata.Imports, n.Metadata.Exports = fileImportsExports(nodes)
		}
	}
}

// scopeChain collects enclosing (type, name) pairs, outermost first.
// Unnamed ancestors (the FILE root, blocks) contribute nothing.
func scopeChain(nodes []*api.ASTNode, parentIdx []int, i int) []api.ScopeEntry {
	var reversed []api.ScopeEntry
	for p := parentIdx[i]; p >= 0; p = parentIdx[p] {
		if nodes[p].Name != "" {
			reversed = append(reversed, api.ScopeEntry{Type: nodes[p].Type, Name: nodes[p].Name})
		}
	}
	if len(reversed) == 0 {
		return nil
	}
	chain := make([]api.ScopeEntry, len(reversed))
	for j, e := range reversed {
		chain[len(reversed)-1-j] = e
	}
	return chain
}

// modifierTokens are the textual modifiers scanned from the declaration
// prefix, across languages.
var modifierTokens = map[string]bool{
	"export": true, "default": true, "async": true, "static": true,
	"public": true, "private": true, "protected": true, "internal": true,
	"const": true, "final": true, "abstract": true, "readonly": true,
	"override": true, "pub": true, "mut": true, "unsafe": true,
	"virtual": true, "sealed": true, "synchronized": true, "extern": true,
}

// exportingTokens additionally mark a declaration as exported.
var exportingTokens = map[string]bool{"export": true, "pub": true, "public": true}

func modifiers(n *api.ASTNode, rn *sitter.Node, src []byte, language string) []string {
	seen := make(map[string]bool)
	var mods []string
	add := func(m string) {
		if !seen[m] {
			seen[m] = true
			mods = append(mods, m)
		}
	}

	// Scan the declaration prefix: everything on the first line of the
	// node plus a wrapping export statement's own text.
	prefix := firstLine(nodeText(rn, src))
	if parent := rn.Parent(); parent != nil && parent.Type() == "export_statement" {
		add("export")
		add("exported")
	}
	for _, tok := range strings.Fields(prefix) {
		tok = strings.TrimRight(tok, "(:{")
		if modifierTokens[tok] {
			add(tok)
			if exportingTokens[tok] {
				add("exported")
			}
		}
	}

	switch language {
	case "go":
		// Exported-ness is spelled with capitalization, not a keyword.
		if n.Name != "" && n.Name[0] >= 'A' && n.Name[0] <= 'Z' {
			add("exported")
		}
	case "python":
		if strings.HasPrefix(n.Name, "_") && !strings.HasPrefix(n.Name, "__init__") {
			add("private")
		}
	}

	return mods
}

// importSpecifier prefers the walker-extracted name (grammar path field),
// then the first string child.
func importSpecifier(n *api.ASTNode, rn *sitter.Node, src []byte) string {
	if n.Name != "" {
		return unquote(n.Name)
	}
	for i := 0; i < int(rn.NamedChildCount()); i++ {
		c := rn.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "string", "interpreted_string_literal", "string_literal":
			return unquote(nodeText(c, src))
		case "dotted_name", "scoped_identifier", "qualified_name", "use_wildcard", "scoped_use_list":
			return nodeText(c, src)
		case "import_spec", "import_spec_list":
			// A grouping declaration: the per-spec children report theirs.
			return ""
		}
	}
	// Wrapping declarations (grouped imports) carry no specifier of their
	// own; the per-spec children report theirs.
	fallback := strings.TrimSpace(strings.TrimPrefix(firstLine(nodeText(rn, src)), "import"))
	fallback = strings.Trim(fallback, "( \t")
	return fallback
}

func exportedName(rn *sitter.Node, src []byte) string {
	if decl := rn.ChildByFieldName("declaration"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			return nodeText(name, src)
		}
	}
	if val := rn.ChildByFieldName("value"); val != nil {
		return firstLine(nodeText(val, src))
	}
	return ""
}

// fileImportsExports aggregates the specifiers of the file's IMPORT and
// EXPORT nodes onto the root.
func fileImportsExports(nodes []*api.ASTNode) (imports, exports []string) {
	for _, n := range nodes {
		if n.Type == api.TypeImport && len(n.Metadata.Imports) > 0 {
			imports = append(imports, n.Metadata.Imports...)
		}
		if n.Type == api.TypeExport && len(n.Metadata.Exports) > 0 {
			exports = append(exports, n.Metadata.Exports...)
		}
	}
	return imports, exports
}

// attachLanguageSpecific records grammar-native fields next to rawKind.
func attachLanguageSpecific(n *api.ASTNode, rn *sitter.Node, src []byte, language string) {
	ls := n.Metadata.LanguageSpecific
	if ls == nil {
		ls = make(map[string]any)
		n.Metadata.LanguageSpecific = ls
	}
	if tp := rn.ChildByFieldName("type_parameters"); tp != nil {
		ls["generics"] = nodeText(tp, src)
	}
	if language == "go" {
		if recv := rn.ChildByFieldName("receiver"); recv != nil {
			ls["receiver"] = nodeText(recv, src)
		}
	}
}

func nodeText(n *sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if start >= uint32(len(src)) || end > uint32(len(src)) || start > end {
		return ""
	}
	return string(src[start:end])
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
