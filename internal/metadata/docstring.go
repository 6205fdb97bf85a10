package metadata

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// commentKinds per grammar family.
var commentKinds = map[string]bool{
	"comment": true, "line_comment": true, "block_comment": true,
	"doc_comment": true,
}

// docstring finds the declaration's documentation: the contiguous comment
// run immediately above it, or (Python convention) the first string
// expression inside its body.
func docstring(rn *sitter.Node, src []byte, language string) string {
	if language == "python" {
		if ds := pythonDocstring(rn, src); ds != "" {
			return ds
		}
	}
	return precedingComments(rn, src)
}

// precedingComments walks backward over adjacent comment siblings.
// Adjacency allows a gap of at most two bytes (one blank line's newline
// pair), the same rule the doc-comment capture uses for write-back spans.
func precedingComments(rn *sitter.Node, src []byte) string {
	var parts []string
	cur := rn
	prev := rn.PrevNamedSibling()
	for prev != nil && commentKinds[prev.Type()] {
		if int(cur.StartByte())-int(prev.EndByte()) > 2 {
			break
		}
		parts = append(parts, cleanComment(nodeText(prev, src)))
		cur = prev
		prev = prev.PrevNamedSibling()
	}
	if len(parts) == 0 {
		return ""
	}
	// Collected bottom-up; restore source order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\n")
}

// pythonDocstring returns the first string expression of the body block.
func pythonDocstring(rn *sitter.Node, src []byte) string {
	body := rn.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr == nil || expr.Type() != "string" {
		return ""
	}
	return strings.Trim(nodeText(expr, src), "\"' \n")
}

func cleanComment(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "///"):
		s = strings.TrimSpace(s[3:])
	case strings.HasPrefix(s, "//"):
		s = strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, "#"):
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimSuffix(s, "*/")
		s = strings.TrimPrefix(s, "/*")
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "*"))
	}
	return s
}

// annotations collects decorator / attribute tokens preceding the
// declaration (Python decorators, Java annotations, Rust attributes,
// C# attribute lists).
var annotationKinds = map[string]bool{
	"decorator": true, "annotation": true, "marker_annotation": true,
	"attribute_item": true, "attribute_list": true, "attribute": true,
}

func annotations(rn *sitter.Node, src []byte) []string {
	var out []string

	// Python wraps decorated declarations; decorators are elder siblings
	// inside the wrapper.
	prev := rn.PrevNamedSibling()
	for prev != nil && annotationKinds[prev.Type()] {
		out = append(out, firstLine(nodeText(prev, src)))
		prev = prev.PrevNamedSibling()
	}
	if len(out) > 1 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	// Java/C# annotations live in a leading modifiers child.
	for i := 0; i < int(rn.NamedChildCount()); i++ {
		c := rn.NamedChild(i)
		if c == nil {
			continue
		}
		if c.Type() == "modifiers" || c.Type() == "attribute_list" {
			for j := 0; j < int(c.NamedChildCount()); j++ {
				a := c.NamedChild(j)
				if a != nil && annotationKinds[a.Type()] {
					out = append(out, nodeText(a, src))
				}
			}
		}
		if c.StartByte() > rn.StartByte() {
			break
		}
	}
	return out
}
