// Package walker transforms raw tree-sitter trees into the flat annotated
// node model. The walk is iterative with an explicit stack so deeply
// nested grammars (long chained expressions) cannot overflow the
// goroutine stack.
package walker

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
	"github.com/agentic-research/astcore/internal/classify"
)

// Config controls what the walk captures.
type Config struct {
	// ClassifyNodes consults the per-language tables for normalized types
	// and atomic-token/wrapper skips. When false every named node passes
	// through with only the structural fallback bucket and its rawKind.
	ClassifyNodes     bool
	IncludeSourceText bool
	// PreserveErrorNodes keeps tree-sitter error regions in the output as
	// ERROR nodes; they are always reported as syntax errors either way.
	PreserveErrorNodes bool
}

// Result is the walk output. Parent/child relations are by index into
// Nodes; ids do not exist yet at this stage, the pipeline links them
// after id generation. Raw holds the originating tree-sitter node per
// output node for the metadata stage; it borrows the parsed tree, which
// must stay alive until enrichment completes.
type Result struct {
	Nodes     []*api.ASTNode
	Raw       []*sitter.Node
	ParentIdx []int
	ChildIdx  [][]int
	Errors    []coreerr.CoreError
}

// excerptLimit bounds the source excerpt attached to syntax errors.
const excerptLimit = 40

// bodyKinds mark children that make their parent a body-bearing construct.
var bodyKinds = map[string]bool{
	"block": true, "statement_block": true, "compound_statement": true,
	"suite": true, "body": true, "class_body": true, "declaration_list": true,
	"field_declaration_list": true, "body_statement": true, "enum_body": true,
	"interface_body": true, "object": true,
}

// declarationListKinds are containers whose direct children read as
// declarations for the classification fallback.
var declarationListKinds = map[string]bool{
	"source_file": true, "program": true, "module": true, "translation_unit": true,
	"block": true, "statement_block": true, "compound_statement": true,
	"suite": true, "class_body": true, "declaration_list": true, "body_statement": true,
}

type frame struct {
	node      *sitter.Node
	parentIdx int
	// parentKind is the raw kind of the nearest named ancestor, whether or
	// not it was emitted.
	parentKind string
}

// Walk flattens the tree into pre-order annotated nodes.
func Walk(tree *sitter.Tree, src []byte, filePath, language string, cfg Config) *Result {
	res := &Result{}
	root := tree.RootNode()
	if root == nil {
		return res
	}

	// The grammar root always becomes the FILE node; a non-FILE root kind
	// is preserved in rawKind rather than producing a synthetic wrapper.
	rootIdx := res.emit(root, api.TypeFile, "", -1, filePath, language, src, cfg)

	stack := make([]frame, 0, 64)
	pushChildren(&stack, root, rootIdx, root.Type())

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := fr.node

		if n.IsError() || n.IsMissing() {
			res.recordSyntaxError(n, src, filePath)
			parentIdx := fr.parentIdx
			if cfg.PreserveErrorNodes && n.IsNamed() {
				parentIdx = res.emit(n, api.TypeError, "", fr.parentIdx, filePath, language, src, cfg)
			}
			// Error regions often contain salvageable partial nodes.
			pushChildren(&stack, n, parentIdx, n.Type())
			continue
		}

		if !n.IsNamed() {
			continue
		}

		rawKind := n.Type()
		hints := classify.Hints{
			ParentKind:        fr.parentKind,
			HasBody:           hasBodyChild(n),
			InDeclarationList: declarationListKinds[fr.parentKind],
		}

		var nt api.NodeType
		ok := true
		if cfg.ClassifyNodes {
			nt, ok = classify.Classify(language, rawKind, hints)
		} else {
			nt = classify.Fallback(rawKind, hints)
		}
		if !ok {
			// Atomic token: no node of its own, children (if any) attach to
			// the nearest emitted ancestor.
			pushChildren(&stack, n, fr.parentIdx, rawKind)
			continue
		}

		idx := res.emit(n, nt, nodeName(n, src), fr.parentIdx, filePath, language, src, cfg)
		pushChildren(&stack, n, idx, rawKind)
	}

	return res
}

// pushChildren schedules children in reverse so the LIFO pop visits them
// in source order.
func pushChildren(stack *[]frame, n *sitter.Node, parentIdx int, parentKind string) {
	count := int(n.ChildCount())
	for i := count - 1; i >= 0; i-- {
		child := n.Child(i)
		if child == nil {
			continue
		}
		*stack = append(*stack, frame{node: child, parentIdx: parentIdx, parentKind: parentKind})
	}
}

// emit appends one output node and links it to its parent by index.
func (r *Result) emit(n *sitter.Node, nt api.NodeType, name string, parentIdx int, filePath, language string, src []byte, cfg Config) int {
	node := &api.ASTNode{
		Type:     nt,
		Name:     name,
		FilePath: filePath,
		Start:    toPosition(n.StartPoint()),
		End:      toPosition(n.EndPoint()),
		Children: []string{},
		Metadata: api.NodeMetadata{
			Language:         language,
			LanguageSpecific: map[string]any{"rawKind": n.Type()},
		},
	}
	if cfg.IncludeSourceText {
		node.SourceText = slice(src, n.StartByte(), n.EndByte())
	}

	idx := len(r.Nodes)
	r.Nodes = append(r.Nodes, node)
	r.Raw = append(r.Raw, n)
	r.ParentIdx = append(r.ParentIdx, parentIdx)
	r.ChildIdx = append(r.ChildIdx, nil)
	if parentIdx >= 0 {
		r.ChildIdx[parentIdx] = append(r.ChildIdx[parentIdx], idx)
	}
	return idx
}

func (r *Result) recordSyntaxError(n *sitter.Node, src []byte, filePath string) {
	pos := toPosition(n.StartPoint())
	excerpt := slice(src, n.StartByte(), n.EndByte())
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	if n.IsMissing() {
		excerpt = "missing " + n.Type()
	}
	r.Errors = append(r.Errors, &coreerr.SyntaxError{
		FilePath: filePath,
		Line:     pos.Line,
		Column:   pos.Column,
		Excerpt:  excerpt,
	})
}

// nodeName pulls the declared name where the grammar exposes one. Nodes
// that are themselves identifiers (e.g. parameters) name themselves.
func nodeName(n *sitter.Node, src []byte) string {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		return slice(src, nameNode.StartByte(), nameNode.EndByte())
	}
	switch n.Type() {
	case "identifier", "field_identifier", "property_identifier", "type_identifier":
		return slice(src, n.StartByte(), n.EndByte())
	case "import_spec", "import_statement", "use_declaration", "preproc_include":
		if pathNode := n.ChildByFieldName("path"); pathNode != nil {
			return slice(src, pathNode.StartByte(), pathNode.EndByte())
		}
	case "typed_parameter", "default_parameter", "typed_default_parameter",
		"optional_parameter", "required_parameter":
		// First identifier child names the parameter.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c != nil && c.Type() == "identifier" {
				return slice(src, c.StartByte(), c.EndByte())
			}
		}
	}
	return ""
}

func hasBodyChild(n *sitter.Node) bool {
	if n.ChildByFieldName("body") != nil {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && bodyKinds[c.Type()] {
			return true
		}
	}
	return false
}

func toPosition(p sitter.Point) api.Position {
	return api.Position{Line: p.Row + 1, Column: p.Column}
}

// slice bounds-checks a byte range against src, mirroring how query
// captures are extracted elsewhere: out-of-range spans yield "".
func slice(src []byte, start, end uint32) string {
	if start >= uint32(len(src)) || end > uint32(len(src)) || start > end {
		return ""
	}
	return string(src[start:end])
}
