package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// ParseError is one ERROR node tagged during parsing (spec §4.1: "grammar
// failure → file kept, error nodes ignored, processing continues").
type ParseError struct {
	Line   int
	Column int
}

// Tree is the only place raw source bytes live; collectors receive
// already-extracted strings and line/column tuples from its methods
// (spec §4.1).
type Tree struct {
	tree     *sitter.Tree
	src      []byte
	language string
	Errors   []ParseError
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
	}
}

// Root returns the root node of the parse tree.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Language returns the grammar this tree was parsed with.
func (t *Tree) Language() string {
	return t.language
}

// Text extracts the source slice spanned by n.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(t.src[n.StartByte():n.EndByte()])
}

// Position returns the 1-based (line, column) of n's start point.
func (t *Tree) Position(n *sitter.Node) (line, column int) {
	p := n.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}

// PrevSibling returns n's previous named sibling, used by collectors to
// look back for a leading documentation comment (spec §4.1).
func (t *Tree) PrevSibling(n *sitter.Node) *sitter.Node {
	return n.PrevNamedSibling()
}

// Walk visits every node in n's subtree depth-first, pre-order, visiting
// named children in the order tree-sitter reports them (which is byte
// order) — the determinism spec §4.2 requires.
func (t *Tree) Walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.Walk(n.NamedChild(i), visit)
	}
}

func (t *Tree) collectErrors(n *sitter.Node) {
	if n == nil {
		return
	}
	if n.IsError() || n.Type() == "ERROR" {
		line, col := t.Position(n)
		t.Errors = append(t.Errors, ParseError{Line: line, Column: col})
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		t.collectErrors(n.Child(i))
	}
}
