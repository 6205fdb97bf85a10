package serialize

import (
	"fmt"

	"github.com/agentic-research/astcore/api"
	"github.com/agentic-research/astcore/coreerr"
)

// ValidateNodes checks the serializer-level requirements on every node:
// required fields, position validity, significance membership, non-empty
// child references. All offenders are reported in one error.
func ValidateNodes(filePath string, nodes []*api.ASTNode) error {
	var offenders, problems []string
	flag := func(n *api.ASTNode, idx int, problem string) {
		id := n.ID
		if id == "" {
			id = fmt.Sprintf("<index %d>", idx)
		}
		offenders = append(offenders, id)
		problems = append(problems, id+": "+problem)
	}

	for i, n := range nodes {
		if n.ID == "" {
			flag(n, i, "missing id")
		}
		if !n.Type.Valid() {
			flag(n, i, fmt.Sprintf("invalid type %q", n.Type))
		}
		if n.FilePath == "" {
			flag(n, i, "missing filePath")
		}
		if n.Start.Line == 0 || n.End.Line == 0 {
			flag(n, i, "zero line position")
		}
		if n.End.Before(n.Start) {
			flag(n, i, fmt.Sprintf("end %d:%d precedes start %d:%d",
				n.End.Line, n.End.Column, n.Start.Line, n.Start.Column))
		}
		if !n.Significance.Valid() {
			flag(n, i, fmt.Sprintf("invalid significance %q", n.Significance))
		}
		if n.Children == nil {
			flag(n, i, "children list absent")
		}
		for _, c := range n.Children {
			if c == "" {
				flag(n, i, "empty child reference")
			}
		}
	}

	if len(offenders) == 0 {
		return nil
	}
	return &coreerr.SerializationValidationError{
		FilePath:  filePath,
		Offenders: offenders,
		Problems:  problems,
	}
}

// ValidateInvariants re-checks the structural file-result invariants on
// the produced nodes: id uniqueness, shared filePath, resolvable parent
// and child references, span containment, single root.
func ValidateInvariants(filePath string, nodes []*api.ASTNode) error {
	var offenders, problems []string
	flag := func(id, problem string) {
		offenders = append(offenders, id)
		problems = append(problems, id+": "+problem)
	}

	byID := make(map[string]*api.ASTNode, len(nodes))
	roots := 0
	for _, n := range nodes {
		if prev, dup := byID[n.ID]; dup && prev != n {
			flag(n.ID, "duplicate id")
		}
		byID[n.ID] = n
		if n.Parent == "" {
			roots++
		}
		if n.FilePath != filePath {
			flag(n.ID, fmt.Sprintf("filePath %q differs from result %q", n.FilePath, filePath))
		}
		if n.End.Before(n.Start) {
			flag(n.ID, "end precedes start")
		}
	}
	if len(nodes) > 0 && roots != 1 {
		flag("<root>", fmt.Sprintf("expected exactly one root, found %d", roots))
	}

	for _, n := range nodes {
		if n.Parent != "" {
			if _, ok := byID[n.Parent]; !ok {
				flag(n.ID, "parent "+n.Parent+" not in result")
			}
		}
		seen := make(map[string]bool, len(n.Children))
		for _, cid := range n.Children {
			if seen[cid] {
				flag(n.ID, "duplicate child "+cid)
			}
			seen[cid] = true
			child, ok := byID[cid]
			if !ok {
				flag(n.ID, "child "+cid+" not in result")
				continue
			}
			if child.Parent != n.ID {
				flag(cid, "parent link does not match containing children list")
			}
			if !n.Contains(child) {
				flag(cid, "span escapes parent span")
			}
		}
	}

	if len(offenders) == 0 {
		return nil
	}
	return &coreerr.SerializationValidationError{
		FilePath:  filePath,
		Offenders: offenders,
		Problems:  problems,
	}
}
