// Package collector implements the C2 declaration and reference passes
// (spec §4.2) shared by every language family. Each family package
// (phpfamily, jsfamily) provides a Collector; this package holds the
// language-agnostic contract and raw data shapes they all emit, grounded
// on the teacher's LanguageConfig split (providers/base.LanguageConfig,
// providers/{php,typescript}/config.go) generalized from "query-type
// matching" to "declaration/reference extraction".
package collector

import (
	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/store/model"
)

// RawSymbol is a declaration emitted by Pass 1 before it has a store ID
// assigned (the pipeline fingerprints it on ingest, spec §4.3).
type RawSymbol struct {
	Kind          string
	Name          string
	QualifiedName string
	Line, Column  int
	ParentQN      string // qualified name of the enclosing declaration, "" for file-level
	Modifiers     []string
	Signature     []model.Parameter
	DeclaredTypes []string
	Docblock      []model.DocEntry
}

// RawReference is an unresolved edge emitted by Pass 1 (spec §3: "raw
// references are created in Pass 1 with target_raw only").
type RawReference struct {
	FromQN       string // qualified name of the enclosing declaration
	Kind         string
	TargetRaw    string
	Line, Column int
	Context      string // e.g. "call", "static_call", "read", "write", "jsx"

	// Populated only for api_call_site raw references (spec §4.2, §4.5).
	HTTPMethod string
	HTTPPath   string
}

// ImportBinding is one entry of a file's active import map, consumed by
// the resolver's scope+imports strategy (spec §4.4 strategy 2).
type ImportBinding struct {
	LocalName string // name as used in this file; alias if aliased
	TargetRaw string // fully- or partially-qualified name being imported
	Grouped   bool   // true if this binding came from a grouped use-statement
}

// Result is everything one file contributes to the symbol table.
type Result struct {
	Symbols    []RawSymbol
	References []RawReference
	Imports    []ImportBinding
	Namespace  string // enclosing namespace/module qualified name, if any
}

// Collector extracts declarations and references from one parsed file.
type Collector interface {
	// Language is the tag this collector handles (matches an ast.Grammar).
	Language() string
	// Collect walks tree and returns everything the file declares and
	// references. filePath is repository-relative, used to qualify
	// file-scoped names where the language has no explicit namespace.
	Collect(tree *ast.Tree, filePath string) (*Result, error)
}
