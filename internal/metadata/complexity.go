package metadata

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// branchKinds are the decision points counted by the cyclomatic-style
// metric, across the supported grammars.
var branchKinds = map[string]bool{
	"if_statement": true, "if_expression": true, "elif_clause": true,
	"else_if_clause": true, "conditional_expression": true, "ternary_expression": true,
	"for_statement": true, "for_expression": true, "for_in_statement": true,
	"while_statement": true, "while_expression": true, "do_statement": true,
	"loop_expression": true, "repeat_statement": true,
	"case_clause": true, "switch_case": true, "match_arm": true, "when_entry": true,
	"expression_case": true, "type_case": true, "communication_case": true,
	"catch_clause": true, "except_clause": true, "rescue": true,
	"guard_statement": true,
}

// shortCircuitOps counted inside binary expressions, for grammars that
// expose the operator as a field.
var shortCircuitOps = map[string]bool{"&&": true, "||": true, "and": true, "or": true}

// complexityCap bounds the metric for pathological inputs.
const complexityCap = 10_000

// complexity walks the declaration's raw subtree iteratively and returns
// 1 + the number of decision points.
func complexity(rn *sitter.Node, src []byte) int {
	count := 1
	stack := []*sitter.Node{rn}
	for len(stack) > 0 && count < complexityCap {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kind := n.Type()
		if n != rn && branchKinds[kind] {
			count++
		}
		if kind == "binary_expression" || kind == "boolean_operator" {
			if op := n.ChildByFieldName("operator"); op != nil && shortCircuitOps[nodeText(op, src)] {
				count++
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return count
}
