package collector

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// writeContainerTypes are node kinds whose "left"/"name" field, when it
// is (or contains) the property-access node under test, marks that access
// as a write rather than a read (spec §4.2, invariant in §8 "Access
// direction"). The set spans both required families: PHP's
// assignment_expression, JS/TS's assignment_expression and
// augmented_assignment_expression, plus increment/decrement and
// destructuring patterns common to both.
var writeContainerTypes = map[string]bool{
	"assignment_expression":           true,
	"augmented_assignment_expression": true,
	"update_expression":               true, // x++ / x--
	"destructuring_assignment":        true,
}

// IsWriteAccess reports whether node (a property/member access or simple
// variable reference) is on the write side of an enclosing assignment,
// compound assignment, increment/decrement, or destructuring target.
// Grounded on the field-name convention the teacher's tree-sitter
// bindings already rely on throughout providers/php and
// providers/typescript (node.ChildByFieldName("left")/("name")).
func IsWriteAccess(node *sitter.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Type()
		if kind == "member_expression" || kind == "member_access_expression" {
			// A property name stands for the member access it names; climb
			// to that access, but not past one that only uses node as its
			// object.
			if nodeContains(parent.ChildByFieldName("property"), node) || nodeContains(parent.ChildByFieldName("name"), node) {
				continue
			}
			return false
		}
		if !writeContainerTypes[kind] {
			// Destructuring patterns nest arbitrarily deep (array/object
			// patterns); keep climbing through those, but stop at any
			// other statement/expression boundary.
			if kind == "object_pattern" || kind == "array_pattern" || kind == "pair_pattern" {
				continue
			}
			return false
		}
		switch kind {
		case "update_expression":
			return true
		case "assignment_expression", "augmented_assignment_expression":
			left := parent.ChildByFieldName("left")
			return nodeContains(left, node)
		case "destructuring_assignment":
			left := parent.ChildByFieldName("left")
			if left == nil {
				left = parent.Child(0)
			}
			return nodeContains(left, node)
		}
	}
	return false
}

func nodeContains(ancestor, node *sitter.Node) bool {
	if ancestor == nil {
		return false
	}
	return ancestor.StartByte() <= node.StartByte() && node.EndByte() <= ancestor.EndByte()
}
