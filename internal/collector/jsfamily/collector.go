// Package jsfamily implements the C2 collector (spec §4.2) shared by
// JavaScript and TypeScript. The two dialects share one tree shape
// closely enough that a single walker parameterized by dialect covers
// both, mirroring the teacher's providers/typescript and
// providers/javascript configs which differ only in their extension
// list and a handful of TS-only node types (type_alias_declaration,
// interface_declaration's extends_clause, enum bodies). There is no TSX
// dialect: TypeScript trees come from the plain TypeScript grammar,
// which has no JSX nodes, so JSX component references are collected
// from JavaScript trees only.
package jsfamily

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/store/model"
)

// Collector extracts JS/TS/TSX symbols and raw references.
type Collector struct {
	dialect string
	typed   bool // true for typescript: recognizes interfaces, type aliases, enums
}

// NewJavaScript builds a collector for plain JavaScript (and JSX).
func NewJavaScript() *Collector { return &Collector{dialect: ast.LangJavaScript} }

// NewTypeScript builds a collector for TypeScript (without JSX).
func NewTypeScript() *Collector { return &Collector{dialect: ast.LangTypeScript, typed: true} }

func (c *Collector) Language() string { return c.dialect }

type scope struct {
	qualifiedName string
	kind          string
}

type state struct {
	c         *Collector
	tree      *ast.Tree
	filePath  string
	moduleQN  string
	stack     []scope
	result    *collector.Result
}

func (c *Collector) Collect(tree *ast.Tree, filePath string) (*collector.Result, error) {
	st := &state{c: c, tree: tree, filePath: filePath, moduleQN: modulePath(filePath), result: &collector.Result{}}
	st.result.Namespace = st.moduleQN
	st.walk(tree.Root())
	return st.result, nil
}

func modulePath(filePath string) string {
	p := strings.TrimSuffix(filePath, ".tsx")
	p = strings.TrimSuffix(p, ".ts")
	p = strings.TrimSuffix(p, ".jsx")
	p = strings.TrimSuffix(p, ".js")
	return p
}

func (s *state) currentQN() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1].qualifiedName
}

func (s *state) qualify(name string) string {
	return s.moduleQN + "." + name
}

func (s *state) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_declaration", "abstract_class_declaration":
		s.handleClass(n)
		return
	case "interface_declaration":
		if s.c.typed {
			s.handleInterface(n)
		}
		return
	case "type_alias_declaration":
		if s.c.typed {
			s.handleTypeAlias(n)
		}
		return
	case "enum_declaration":
		if s.c.typed {
			s.handleEnum(n)
		}
		return
	case "function_declaration", "generator_function_declaration":
		s.handleFunction(n)
		return
	case "method_definition":
		s.handleMethod(n)
		return
	case "public_field_definition", "property_signature":
		s.handleField(n)
	case "import_statement":
		s.handleImport(n)
	case "export_statement":
		s.handleExport(n)
	case "call_expression":
		s.handleCall(n)
	case "new_expression":
		s.handleNew(n)
	case "assignment_expression":
		s.handleAssignment(n)
	case "jsx_opening_element", "jsx_self_closing_element":
		s.handleJSX(n)
	case "binary_expression":
		s.handleInstanceof(n)
	case "throw_statement":
		s.handleThrow(n)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i))
	}
}

func (s *state) handleClass(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			s.walk(n.NamedChild(i))
		}
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)
	mods := classModifiers(n, s.tree)

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindClass, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: s.moduleQN, Modifiers: mods,
	})

	if heritage := n.ChildByFieldName("heritage"); heritage != nil {
		s.emitHeritage(heritage, qn)
	} else {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "class_heritage" {
				s.emitHeritage(child, qn)
			}
		}
	}

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: model.KindClass})
	if body := n.ChildByFieldName("body"); body != nil {
		s.walk(body)
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) emitHeritage(n *sitter.Node, ownerQN string) {
	line, col := s.tree.Position(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() == "identifier" || clause.Type() == "member_expression" {
			// JavaScript's class_heritage holds the superclass expression
			// directly rather than inside an extends_clause.
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: ownerQN, Kind: model.RefExtends, TargetRaw: s.tree.Text(clause), Line: line, Column: col,
			})
			continue
		}
		kind := model.RefImplements
		if clause.Type() == "extends_clause" {
			kind = model.RefExtends
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			target := clause.NamedChild(j)
			if target.Type() == "identifier" || target.Type() == "type_identifier" || target.Type() == "member_expression" {
				s.result.References = append(s.result.References, collector.RawReference{
					FromQN: ownerQN, Kind: kind, TargetRaw: s.tree.Text(target), Line: line, Column: col,
				})
			}
		}
	}
}

func (s *state) handleInterface(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindInterface, Name: name, QualifiedName: qn, Line: line, Column: col, ParentQN: s.moduleQN,
	})

	if ext := n.ChildByFieldName("extends_clause"); ext != nil {
		s.emitHeritage(ext, qn)
	}

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: model.KindInterface})
	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member.Type() == "property_signature" {
				s.handleField(member)
			} else if member.Type() == "method_signature" {
				s.handleMethodSignature(member, qn)
			}
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) handleMethodSignature(n *sitter.Node, ownerQN string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	qn := ownerQN + "#" + name
	line, col := s.tree.Position(n)
	sig := s.parseSignature(n.ChildByFieldName("parameters"))
	var declared []string
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		declared = append(declared, s.tree.Text(ret))
	}
	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindMethod, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: ownerQN, Signature: sig, DeclaredTypes: declared,
	})
}

func (s *state) handleTypeAlias(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)
	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindClass, Name: name, QualifiedName: qn, Line: line, Column: col, ParentQN: s.moduleQN,
		Modifiers: []string{"type_alias"},
	})
}

func (s *state) handleEnum(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)
	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindEnum, Name: name, QualifiedName: qn, Line: line, Column: col, ParentQN: s.moduleQN,
	})
}

func (s *state) handleFunction(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	qn := s.qualify(name)
	line, col := s.tree.Position(n)
	sig := s.parseSignature(n.ChildByFieldName("parameters"))
	var declared []string
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		declared = append(declared, s.tree.Text(ret))
	}
	mods := functionModifiers(n, s.tree)

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindFunction, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: s.moduleQN, Modifiers: mods, Signature: sig, DeclaredTypes: declared,
	})
	s.emitSignatureRefs(qn, sig, declared, line, col)

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: model.KindFunction})
	if body := n.ChildByFieldName("body"); body != nil {
		s.walk(body)
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) handleMethod(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	ownerQN := s.currentQN()
	qn := name
	if ownerQN != "" {
		qn = ownerQN + "#" + name
	} else {
		qn = s.qualify(name)
	}
	line, col := s.tree.Position(n)
	sig := s.parseSignature(n.ChildByFieldName("parameters"))
	var declared []string
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		declared = append(declared, s.tree.Text(ret))
	}
	mods := functionModifiers(n, s.tree)
	if name == "constructor" {
		mods = append(mods, "constructor")
	}

	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindMethod, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: ownerQN, Modifiers: mods, Signature: sig, DeclaredTypes: declared,
	})
	s.emitSignatureRefs(qn, sig, declared, line, col)

	s.stack = append(s.stack, scope{qualifiedName: qn, kind: model.KindMethod})
	if body := n.ChildByFieldName("body"); body != nil {
		s.walk(body)
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *state) emitSignatureRefs(qn string, sig []model.Parameter, declared []string, line, col int) {
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
}

func (s *state) parseSignature(params *sitter.Node) []model.Parameter {
	if params == nil {
		return nil
	}
	var out []model.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "required_parameter", "optional_parameter":
			out = append(out, s.parseOneParam(p, p.Type() == "optional_parameter"))
		case "rest_pattern":
			name := s.tree.Text(p)
			out = append(out, model.Parameter{Name: strings.TrimPrefix(name, "..."), Variadic: true})
		case "identifier":
			out = append(out, model.Parameter{Name: s.tree.Text(p)})
		}
	}
	return out
}

func (s *state) parseOneParam(p *sitter.Node, optional bool) model.Parameter {
	var declType string
	if t := p.ChildByFieldName("type"); t != nil {
		declType = s.tree.Text(t)
	}
	name := ""
	if pat := p.ChildByFieldName("pattern"); pat != nil {
		name = s.tree.Text(pat)
	}
	return model.Parameter{
		Name:         name,
		DeclaredType: declType,
		HasDefault:   optional || p.ChildByFieldName("value") != nil,
	}
}

func (s *state) handleField(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.tree.Text(nameNode)
	ownerQN := s.currentQN()
	qn := name
	if ownerQN != "" {
		qn = ownerQN + "#" + name
	} else {
		qn = s.qualify(name)
	}
	line, col := s.tree.Position(n)
	var declared []string
	if t := n.ChildByFieldName("type"); t != nil {
		declared = []string{s.tree.Text(t)}
	}
	s.result.Symbols = append(s.result.Symbols, collector.RawSymbol{
		Kind: model.KindProperty, Name: name, QualifiedName: qn, Line: line, Column: col,
		ParentQN: ownerQN, DeclaredTypes: declared,
	})
}

func (s *state) handleImport(n *sitter.Node) {
	srcNode := n.ChildByFieldName("source")
	if srcNode == nil {
		return
	}
	target := strings.Trim(s.tree.Text(srcNode), `"'`)
	line, col := s.tree.Position(n)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: "<file>", Kind: model.RefImports, TargetRaw: target, Line: line, Column: col,
	})

	clause := firstChildOfType(n, "import_clause")
	if clause == nil {
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			s.result.Imports = append(s.result.Imports, collector.ImportBinding{LocalName: s.tree.Text(c), TargetRaw: target})
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				name := spec.ChildByFieldName("name")
				localName := ""
				if local != nil {
					localName = s.tree.Text(local)
				} else if name != nil {
					localName = s.tree.Text(name)
				}
				s.result.Imports = append(s.result.Imports, collector.ImportBinding{LocalName: localName, TargetRaw: target, Grouped: true})
			}
		case "namespace_import":
			s.result.Imports = append(s.result.Imports, collector.ImportBinding{LocalName: s.tree.Text(c), TargetRaw: target})
		}
	}
}

func (s *state) handleExport(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i))
	}
}

func (s *state) handleCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)

	if fn.Type() == "identifier" && s.tree.Text(fn) == "require" {
		args := n.ChildByFieldName("arguments")
		if args != nil && args.NamedChildCount() > 0 {
			target := strings.Trim(s.tree.Text(args.NamedChild(0)), `"'`)
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: "<file>", Kind: model.RefImports, TargetRaw: target, Line: line, Column: col, Context: "require",
			})
		}
		return
	}
	if fn.Type() == "import" {
		args := n.ChildByFieldName("arguments")
		if args != nil && args.NamedChildCount() > 0 {
			target := strings.Trim(s.tree.Text(args.NamedChild(0)), `"'`)
			s.result.References = append(s.result.References, collector.RawReference{
				FromQN: "<file>", Kind: model.RefImports, TargetRaw: target, Line: line, Column: col, Context: "dynamic_import",
			})
		}
		return
	}

	target := s.tree.Text(fn)
	kind := model.RefCalls
	ctx := "call"
	if fn.Type() == "member_expression" {
		ctx = "method_call"
		if httpMethod, ok := httpClientMethod(fn, s.tree); ok {
			s.emitAPICallSite(n, ownerQN, httpMethod, line, col)
			return
		}
	}
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: kind, TargetRaw: target, Line: line, Column: col, Context: ctx,
	})
}

// httpClientMethod recognizes member calls whose method name is an HTTP
// verb (`axios.get(...)`, `client.post(...)`), whatever the receiver,
// per spec §4.5's API call-site recognition; bare calls such as
// `fetch(...)` are not recognized. This is a best-effort heuristic
// grounded on the common method-name vocabulary, not a specific client
// library's type info.
var httpVerbs = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT", "patch": "PATCH", "delete": "DELETE", "head": "HEAD",
}

func httpClientMethod(memberExpr *sitter.Node, tree *ast.Tree) (string, bool) {
	prop := memberExpr.ChildByFieldName("property")
	if prop == nil {
		return "", false
	}
	verb, ok := httpVerbs[strings.ToLower(tree.Text(prop))]
	return verb, ok
}

func (s *state) emitAPICallSite(call *sitter.Node, ownerQN, method string, line, col int) {
	args := call.ChildByFieldName("arguments")
	path := ""
	if args != nil && args.NamedChildCount() > 0 {
		arg := args.NamedChild(0)
		if arg.Type() == "string" || arg.Type() == "template_string" {
			path = strings.Trim(s.tree.Text(arg), "`\"'")
		}
	}
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefAPICalls, TargetRaw: path, Line: line, Column: col,
		Context: "api_call_site", HTTPMethod: method, HTTPPath: path,
	})
}

func (s *state) handleNew(n *sitter.Node) {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefInstantiates, TargetRaw: s.tree.Text(ctor), Line: line, Column: col,
	})
}

func (s *state) handleAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != "member_expression" {
		return
	}
	prop := left.ChildByFieldName("property")
	if prop == nil {
		return
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(left)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefAccessesWrite, TargetRaw: s.tree.Text(prop), Line: line, Column: col, Context: "write",
	})
}

func (s *state) handleJSX(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	text := s.tree.Text(nameNode)
	if text == "" || !isUpper(text[0]) {
		return // lowercase JSX tags are host elements, not component references (resolved Open Question)
	}
	ownerQN := s.currentQN()
	line, col := s.tree.Position(n)
	s.result.References = append(s.result.References, collector.RawReference{
		FromQN: ownerQN, Kind: model.RefCalls, TargetRaw: text, Line: line, Column: col, Context: "jsx",
	})
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

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
		if child.Type() == "new_expression" {
			if ctor := child.ChildByFieldName("constructor"); ctor != nil {
				ownerQN := s.currentQN()
				line, col := s.tree.Position(n)
				s.result.References = append(s.result.References, collector.RawReference{
					FromQN: ownerQN, Kind: model.RefThrows, TargetRaw: s.tree.Text(ctor), Line: line, Column: col,
				})
			}
		}
	}
}

var modifierKeywords = map[string]bool{
	"abstract": true, "static": true, "readonly": true, "async": true,
	"public": true, "protected": true, "private": true,
}

func classModifiers(n *sitter.Node, tree *ast.Tree) []string {
	var mods []string
	if n.Type() == "abstract_class_declaration" {
		mods = append(mods, model.ModAbstract)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		text := tree.Text(n.Child(i))
		if modifierKeywords[text] {
			mods = append(mods, text)
		}
	}
	return mods
}

func functionModifiers(n *sitter.Node, tree *ast.Tree) []string {
	var mods []string
	for i := 0; i < int(n.ChildCount()); i++ {
		text := tree.Text(n.Child(i))
		if modifierKeywords[text] {
			mods = append(mods, text)
		}
	}
	if n.Type() == "generator_function_declaration" {
		mods = append(mods, model.ModGenerator)
	}
	if hasChildOfType(n, "*") {
		mods = append(mods, model.ModGenerator)
	}
	return mods
}

func hasChildOfType(n *sitter.Node, t string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == t {
			return true
		}
	}
	return false
}

func firstChildOfType(n *sitter.Node, t string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == t {
			return n.Child(i)
		}
	}
	return nil
}
