package metadata

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/astcore/api"
)

// returnTypeFields in probe order; grammars disagree on the field name.
var returnTypeFields = []string{"return_type", "result", "type"}

// signature renders "name(params) ret" textually from the declaration.
// Whitespace is normalized; nothing is semantically resolved.
func signature(n *api.ASTNode, rn *sitter.Node, src []byte) string {
	var b strings.Builder
	b.WriteString(n.Name)

	if tp := rn.ChildByFieldName("type_parameters"); tp != nil {
		b.WriteString(normalizeSpace(nodeText(tp, src)))
	}

	params := rn.ChildByFieldName("parameters")
	if params == nil {
		params = rn.ChildByFieldName("parameter_list")
	}
	if params != nil {
		b.WriteString(normalizeSpace(nodeText(params, src)))
	} else {
		b.WriteString("()")
	}

	for _, field := range returnTypeFields {
		ret := rn.ChildByFieldName(field)
		if ret == nil {
			continue
		}
		text := normalizeSpace(nodeText(ret, src))
		if text == "" {
			break
		}
		// Type annotations carry their own leading ":"; bare types get a
		// separating space (Go results, Java return types).
		if strings.HasPrefix(text, ":") || strings.HasPrefix(text, "->") {
			b.WriteString(text)
		} else {
			b.WriteString(" ")
			b.WriteString(text)
		}
		break
	}

	return b.String()
}

// normalizeSpace collapses whitespace runs to single spaces and trims
// space adjacent to delimiters.
func normalizeSpace(s string) string {
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	out = strings.ReplaceAll(out, "( ", "(")
	out = strings.ReplaceAll(out, " )", ")")
	out = strings.ReplaceAll(out, " ,", ",")
	out = strings.ReplaceAll(out, " :", ":")
	return out
}
