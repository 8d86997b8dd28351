// Package phpfamily implements the "scoped source language" collector of
// spec §4.2 for PHP: namespaces, classes, interfaces, traits, enums,
// methods, properties, constants, functions and use-statements.
// Attributes (#[...]) are not recorded. Node-type names are grounded on the teacher's
// providers/php/config.go (ExtractNodeName, aliasMap-equivalent switch).
package phpfamily

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/store/model"
)

// Collector extracts PHP symbols and raw references.
type Collector struct{}

// New creates a PHP collector.
func New() *Collector { return &Collector{} }

func (c *Collector) Language() string { return "php" }

type scope struct {
	qualifiedName string
	kind          string
}

type state struct {
	tree      *ast.Tree
	filePath  string
	namespace string
	stack     []scope
	result    *collector.Result
}

func (c *Collector) Collect(tree *ast.Tree, filePath string) (*collector.Result, error) {
	st := &state{tree: tree, filePath: filePath, result: &collector.Result{}}
	st.walk(tree.Root())
	st.result.Namespace = st.namespace
	return st.result, nil
}

func (s *state) currentQN() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1].qualifiedName
}

func (s *state) qualify(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + "\\" + name
}

func (s *state) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "namespace_definition":
		s.handleNamespace(n)
		return // children already visited by handleNamespace
	case "namespace_use_declaration":
		s.handleUse(n)
	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		s.handleContainer(n)
		return
	case "method_declaration", "function_definition":
		s.handleCallable(n)
		return
	case "property_declaration":
		s.handleProperty(n)
	case "const_declaration":
		s.handleConst(n)
	case "member_call_expression", "scoped_call_expression", "function_call_expression":
		s.handleCall(n)
	case "object_creation_expression":
		s.handleInstantiate(n)
	case "member_access_expression":
		s.handleMemberAccess(n)
	case "binary_expression":
		s.handleInstanceof(n)
	case "throw_expression":
		s.handleThrow(n)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i))
	}
}

func (s *state) handleNamespace(n *sitter.Node) {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		s.namespace = s.tree.Text(nameNode)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i))
	}
}

func (s *state) handleUse(n *sitter.Node) {
	line, col := s.tree.Position(n)
	grouped := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "namespace_use_group" {
			grouped = true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "qualified_name", "name":
			target := s.tree.Text(child)
			local := lastSegment(target)
			s.result.Imports = append(s.result.Imports, collector.ImportBinding{LocalName: local, TargetRaw: target, Grouped: grouped})
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: "<file>", Kind: model.RefImports, TargetRaw: target, Line: line, Column: col,
			})
		case "namespace_aliasing_clause":
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				if len(s.result.Imports) > 0 {
					s.result.Imports[len(s.result.Imports)-1].LocalName = s.tree.Text(aliasNode)
				}
			}
		}
	}
}

func (s *state) handleContainer(n *sitter.Node) {
	kind := containerKind(n.Type())
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous class or malformed declaration; skip but still
		// descend so nested declarations aren't lost.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			s.walk(n.NamedChild(i))
		}
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: kind, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: parentQN(qn), Modifiers: containerModifiers(n, s.tree),
	})

	if base := n.ChildByFieldName("base_clause"); base != nil {
		s.emitTypeRefs(base, qn, model.RefExtends)
	}
	if iface := n.ChildByFieldName("interfaces"); iface != nil {
		s.emitTypeRefs(iface, qn, model.RefImplements)
	}

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: kind})
	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if child.Type() == "use_declaration" {
				s.handleTraitUse(child, qn)
				continue
			}
			s.walk(child)
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) handleTraitUse(n *sitter.Node, ownerQN string) {
	line, col := s.tree.Position(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "qualified_name" || child.Type() == "name" {
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: ownerQN, Kind: model.RefUsesTrait, TargetRaw: s.tree.Text(child), Line: line, Column: col,
			})
		}
	}
}

func (s *state) emitTypeRefs(n *sitter.Node, ownerQN, kind string) {
	line, col := s.tree.Position(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "qualified_name" || child.Type() == "name" {
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: ownerQN, Kind: kind, TargetRaw: s.tree.Text(child), Line: line, Column: col,
			})
		}
	}
}

func (s *state) handleCallable(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	kind := model.KindFunction
	ownerQN := s.currentQN()
	qn := name
	if ownerQN != "" {
		kind = model.KindMethod
		qn = ownerQN + "::" + name
	} else {
		qn = s.qualify(name)
	}
	line, col := s.tree.Position(n)

	sig := s.parseSignature(n.ChildByFieldName("parameters"))
	mods := callableModifiers(n, s.tree)
	var declared []string
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		declared = append(declared, s.tree.Text(ret))
	}

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: kind, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: ownerQN, Modifiers: mods, Signature: sig, DeclaredTypes: declared,
		Docblock: s.docblockFor(n),
	})

	for _, p := range sig {
		if p.DeclaredType != "" {
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: qn, Kind: model.RefParameterType, TargetRaw: p.DeclaredType, Line: line, Column: col,
			})
		}
	}
	if len(declared) > 0 {
		s.result.References = append(s.result.References, collector.RawReference{
			FromQN: qn, Kind: model.RefReturnsType, TargetRaw: declared[0], Line: line, Column: col,
		})
	}
	for _, d := range s.result.Symbols[len(s.result.Symbols)-1].Docblock {
		if d.Tag == "@throws" && d.Type != "" {
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: qn, Kind: model.RefThrows, TargetRaw: d.Type, Line: line, Column: col,
			})
		}
	}

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: kind})
	if body := n.ChildByFieldName("body"); body != nil {
		s.walk(body)
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) parseSignature(params *sitter.Node) []model.Parameter {
	if params == nil {
		return nil
	}
	var out []model.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "simple_parameter" && p.Type() != "variadic_parameter" && p.Type() != "property_promotion_parameter" {
			continue
		}
		var declType string
		if t := p.ChildByFieldName("type"); t != nil {
			declType = s.tree.Text(t)
		}
		var name string
		if nm := p.ChildByFieldName("name"); nm != nil {
			name = strings.TrimPrefix(s.tree.Text(nm), "$")
		}
		out = append(out, model.Parameter{
			Name:         name,
			DeclaredType: declType,
			HasDefault:   p.ChildByFieldName("default_value") != nil,
			ByReference:  hasChildOfType(p, "reference_modifier"),
			Variadic:     p.Type() == "variadic_parameter",
		})
	}
	return out
}

func (s *state) handleProperty(n *sitter.Node) {
	var declType string
	if t := n.ChildByFieldName("type"); t != nil {
		declType = s.tree.Text(t)
	}
	mods := containerModifiers(n, s.tree)
	ownerQN := s.currentQN()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "property_element" {
			continue
		}
		varNode := child.ChildByFieldName("name")
		if varNode == nil {
			varNode = firstChildOfType(child, "variable_name")
		}
		if varNode == nil {
			continue
		}
		name := strings.TrimPrefix(s.tree.Text(varNode), "$")
		qn := name
		if ownerQN != "" {
			qn = ownerQN + "::$" + name
		}
		line, col := s.tree.Position(child)
		var declared []string
		if declType != "" {
			declared = []string{declType}
		}
		s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
			Kind: model.KindProperty, Name: name, QualifiedName: qn, Line: line, Column: col,
			ParentQN: ownerQN, Modifiers: mods, DeclaredTypes: declared,
		})
	}
}

func (s *state) handleConst(n *sitter.Node) {
	ownerQN := s.currentQN()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "const_element" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := s.tree.Text(nameNode)
		qn := name
		if ownerQN != "" {
			qn = ownerQN + "::" + name
		} else {
			qn = s.qualify(name)
		}
		line, col := s.tree.Position(child)
		s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
			Kind: model.KindConstant, Name: name, QualifiedName: qn, Line: line, Column: col, ParentQN: ownerQN,
		})
	}
}

func (s *state) handleCall(n *sitter.Node) {
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	kind := model.RefCalls
	ctx := "call"
	if n.Type() == "scoped_call_expression" {
		kind = model.RefCallsStatic
		ctx = "static_call"
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		// free function calls (foo(), strlen($x)) carry their callee under
		// the "function" field instead of "name".
		nameNode = n.ChildByFieldName("function")
	}
	if nameNode == nil {
		return
	}
	target := s.tree.Text(nameNode)
	if recv := n.ChildByFieldName("object"); recv != nil {
		target = s.tree.Text(recv) + "." + target
	} else if scopeNode := n.ChildByFieldName("scope"); scopeNode != nil {
		target = s.tree.Text(scopeNode) + "::" + target
	}
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: kind, TargetRaw: target, Line: line, Column: col, Context: ctx,
	})
}

func (s *state) handleInstantiate(n *sitter.Node) {
	nameNode := n.ChildByFieldName("class")
	if nameNode == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefInstantiates, TargetRaw: s.tree.Text(nameNode), Line: line, Column: col,
	})
}

func (s *state) handleMemberAccess(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	kind := model.RefAccessesRead
	ctx := "read"
	if collector.IsWriteAccess(n) {
		kind = model.RefAccessesWrite
		ctx = "write"
	}
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: kind, TargetRaw: s.tree.Text(nameNode), Line: line, Column: col, Context: ctx,
	})
}

func (s *state) handleInstanceof(n *sitter.Node) {
	op := n.ChildByFieldName("operator")
	if op == nil || s.tree.Text(op) != "instanceof" {
		return
	}
	right := n.ChildByFieldName("right")
	if right == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefInstanceof, TargetRaw: s.tree.Text(right), Line: line, Column: col,
	})
}

func (s *state) handleThrow(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "object_creation_expression" {
			s.handleInstantiate(child) // already emits instantiates; throw adds a throws edge too
			if cls := child.ChildByFieldName("class"); cls != nil {
				ownerQN := s.currentQN()
				line, col := s.tree.Position(n)
				s.result.References = append(s.result.References, collector.RawReference{
					FromQN: ownerQN, Kind: model.RefThrows, TargetRaw: s.tree.Text(cls), Line: line, Column: col,
				})
			}
		}
	}
}

// docblockFor looks at n's previous sibling for a `comment` node shaped
// like a PHP docblock and parses @param/@return/@throws entries.
func (s *state) docblockFor(n *sitter.Node) []model.DocEntry {
	prev := s.tree.PrevSibling(n)
	if prev == nil || prev.Type() != "comment" {
		return nil
	}
	text := s.tree.Text(prev)
	if !strings.HasPrefix(strings.TrimSpace(text), "/**") {
		return nil
	}
	return parseDocblock(text)
}

func parseDocblock(text string) []model.DocEntry {
	var out []model.DocEntry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "@") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		tag := fields[0]
		entry := model.DocEntry{Tag: tag}
		switch tag {
		case "@param":
			if len(fields) > 1 {
				entry.Type = fields[1]
			}
			if len(fields) > 2 {
				entry.Name = strings.TrimPrefix(fields[2], "$")
			}
		case "@return", "@throws":
			if len(fields) > 1 {
				entry.Type = fields[1]
			}
		}
		if len(fields) > 1 {
			entry.Text = strings.Join(fields[1:], " ")
		}
		out = append(out, entry)
	}
	return out
}

func containerKind(nodeType string) string {
	switch nodeType {
	case "class_declaration":
		return model.KindClass
	case "interface_declaration":
		return model.KindInterface
	case "trait_declaration":
		return model.KindTrait
	case "enum_declaration":
		return model.KindEnum
	}
	return model.KindClass
}

var modifierKeywords = map[string]bool{
	"abstract": true, "final": true, "static": true, "readonly": true,
	"public": true, "protected": true, "private": true,
}

func containerModifiers(n *sitter.Node, tree *ast.Tree) []string {
	var mods []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		text := tree.Text(child)
		if modifierKeywords[text] {
			mods = append(mods, text)
		}
	}
	return mods
}

func callableModifiers(n *sitter.Node, tree *ast.Tree) []string {
	mods := containerModifiers(n, tree)
	if n.ChildByFieldName("reference_modifier") != nil {
		mods = append(mods, model.ModReadonly)
	}
	return mods
}

func hasChildOfType(n *sitter.Node, t string) bool {
	return firstChildOfType(n, t) != nil
}

func firstChildOfType(n *sitter.Node, t string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == t {
			return n.Child(i)
		}
	}
	return nil
}

func lastSegment(qn string) string {
	qn = strings.TrimPrefix(qn, "\\")
	if idx := strings.LastIndex(qn, "\\"); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}

func parentQN(qn string) string {
	if idx := strings.LastIndex(qn, "\\"); idx >= 0 {
		return qn[:idx]
	}
	return ""
}
