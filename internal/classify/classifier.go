// Package classify assigns normalized node types and significance levels.
// The per-language mappings are data, not code: adding a language means a
// new table plus a grammar descriptor.
package classify

import (
	"strings"

	"github.com/agentic-research/astcore/api"
)

// Hints carry the structural context the fallback rules need. They are
// derived from the raw tree by the walker; the classifier itself stays
// pure and deterministic.
type Hints struct {
	ParentKind string
	// HasBody is true when the node carries a block/body/suite child.
	HasBody bool
	// InDeclarationList is true when the direct parent is a declaration
	// container (class body, declaration list, source file).
	InDeclarationList bool
}

// Classify maps a raw grammar kind to a normalized type. ok=false means
// the node is an atomic token that produces no node of its own.
func Classify(language, rawKind string, h Hints) (api.NodeType, bool) {
	t := tables[strings.ToLower(language)]

	if t != nil {
		if byParent, ok := t.byParent[h.ParentKind]; ok {
			if nt, ok := byParent[rawKind]; ok {
				return nt, true
			}
		}
		if nt, ok := t.kinds[rawKind]; ok {
			return nt, true
		}
		if t.skip[rawKind] {
			return "", false
		}
	}

	if commonSkip[rawKind] || passthroughKinds[rawKind] {
		return "", false
	}

	return Fallback(rawKind, h), true
}

// Fallback buckets a raw kind into COMMENT / ERROR / BLOCK / STATEMENT /
// EXPRESSION from structural hints alone, consulting no language table.
// Total: every kind yields a type. This is both the tail of Classify and
// the whole classification when a caller disables table classification.
func Fallback(rawKind string, h Hints) api.NodeType {
	switch rawKind {
	case "comment", "line_comment", "block_comment":
		return api.TypeComment
	case "ERROR":
		return api.TypeError
	}
	if h.HasBody {
		return api.TypeBlock
	}
	for _, suffix := range statementSuffixes {
		if strings.HasSuffix(rawKind, suffix) {
			return api.TypeStatement
		}
	}
	if h.InDeclarationList {
		return api.TypeStatement
	}
	return api.TypeExpression
}

// Supported reports whether a dedicated table exists for the language.
// Languages without one still classify through the fallback rules.
func Supported(language string) bool {
	_, ok := tables[strings.ToLower(language)]
	return ok
}
