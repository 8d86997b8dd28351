// Package resolver implements Pass 2 (spec §4.4): it rewrites every raw
// reference emitted by a collector into a concrete target_id, deriving
// overrides/implements_method edges once the class hierarchy is
// resolved. Grounded on the two-pass symbol-table shape of
// other_examples' maraichr-codegraph internal/resolver/resolver.go,
// generalized from its single "project-wide lookup" strategy to the six
// ordered strategies the specification names.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// Engine performs project-wide reference resolution.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "resolver").Logger()}
}

// SymbolTable indexes every symbol known to the project for the ordered
// strategies of spec §4.4.
type SymbolTable struct {
	ByID        map[string]model.Symbol
	ByFQN       map[string]string              // "lang\x00kind\x00qn" -> id, exact strategy 1
	ByQNAnyKind map[string][]string             // qn -> ids, any kind, same language
	ByShortName map[string][]string             // short name -> ids (namespace fallback / suffix)
	ByNamespace map[string][]string             // namespace -> ids declared in it
	FilesByPath map[string]string               // file_path -> file symbol id
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		ByID:        make(map[string]model.Symbol),
		ByFQN:       make(map[string]string),
		ByQNAnyKind: make(map[string][]string),
		ByShortName: make(map[string][]string),
		ByNamespace: make(map[string][]string),
		FilesByPath: make(map[string]string),
	}
}

func fqnKey(lang, kind, qn string) string { return lang + "\x00" + kind + "\x00" + qn }

func shortNameOf(qn string) string {
	qn = strings.TrimSuffix(qn, "()")
	for _, sep := range []string{"::", "#", ".", "\\"} {
		if idx := strings.LastIndex(qn, sep); idx >= 0 {
			return qn[idx+len(sep):]
		}
	}
	return qn
}

func namespaceOf(qn string) string {
	for _, sep := range []string{"\\", "."} {
		if idx := strings.LastIndex(qn, sep); idx >= 0 {
			return qn[:idx]
		}
	}
	return ""
}

// builtinTypes is the language-specific allow-list of strategy 3. Each
// name resolves to a single shared built-in placeholder per language.
var builtinTypes = map[string]map[string]bool{
	"php": {
		"string": true, "int": true, "float": true, "bool": true, "array": true,
		"object": true, "mixed": true, "void": true, "null": true, "callable": true, "iterable": true, "self": true,
	},
	"javascript": {
		"string": true, "number": true, "boolean": true, "object": true, "undefined": true, "null": true,
		"Array": true, "Object": true, "Promise": true, "Function": true,
	},
	"typescript": {
		"string": true, "number": true, "boolean": true, "object": true, "undefined": true, "null": true,
		"any": true, "unknown": true, "void": true, "never": true, "Array": true, "Promise": true, "Record": true,
	},
}

// PendingFile is one collected file handed to the resolver (pass 1
// output plus the context the resolver needs: enclosing namespace and
// import map).
type PendingFile struct {
	Path      string
	Language  string
	Namespace string
	Imports   []collector.ImportBinding
	Result    *collector.Result
	// SymbolIDs maps each RawSymbol's QualifiedName to the store-assigned
	// ID the pipeline fingerprinted it with (spec §4.3), in the same
	// order as Result.Symbols.
	SymbolIDs []string
}

// Stats accumulates per-kind resolution counters for the run report
// (spec §7's structured run report, §4.4's "counted per kind").
type Stats struct {
	ResolvedByStrategy map[string]int
	UnresolvedByKind   map[string]int
}

func newStats() *Stats {
	return &Stats{ResolvedByStrategy: make(map[string]int), UnresolvedByKind: make(map[string]int)}
}

// Resolve rewrites every raw reference across files into persisted
// Reference rows, and derives overrides/implements_method edges. It
// writes through w and returns run statistics.
func (e *Engine) Resolve(ctx context.Context, w *store.Writer, files []PendingFile) (*Stats, error) {
	table := newSymbolTable()
	e.index(table, files)

	stats := newStats()

	// Layer (i): structural references (extends/implements/uses_trait/imports).
	structHierarchy := newHierarchy()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for _, ref := range f.Result.References {
			switch ref.Kind {
			case model.RefExtends, model.RefImplements, model.RefUsesTrait, model.RefImports:
				if err := e.resolveOne(w, table, f, ref, stats); err != nil {
					return stats, err
				}
				if ref.Kind == model.RefExtends {
					if srcID, ok := table.ByQN(f.Language, ref.FromQN); ok {
						if tgtID, ok2 := lookupExact(table, f.Language, ref.TargetRaw, []string{model.KindClass, model.KindTrait, model.KindInterface}); ok2 {
							structHierarchy.addExtends(srcID, tgtID)
						}
					}
				}
				if ref.Kind == model.RefImplements {
					if srcID, ok := table.ByQN(f.Language, ref.FromQN); ok {
						if tgtID, ok2 := lookupExact(table, f.Language, ref.TargetRaw, []string{model.KindInterface}); ok2 {
							structHierarchy.addImplements(srcID, tgtID)
						}
					}
				}
			}
		}
	}

	// Layer (ii): signature references.
	for _, f := range files {
		for _, ref := range f.Result.References {
			switch ref.Kind {
			case model.RefParameterType, model.RefReturnsType:
				if err := e.resolveOne(w, table, f, ref, stats); err != nil {
					return stats, err
				}
			}
		}
	}

	// Layer (iii): expression references.
	for _, f := range files {
		for _, ref := range f.Result.References {
			switch ref.Kind {
			case model.RefCalls, model.RefCallsStatic, model.RefInstantiates,
				model.RefAccessesRead, model.RefAccessesWrite, model.RefThrows, model.RefInstanceof:
				if err := e.resolveOne(w, table, f, ref, stats); err != nil {
					return stats, err
				}
			}
		}
	}

	// Layer (iv): derived edges, only after the hierarchy above is known.
	if err := e.deriveOverrides(w, table, structHierarchy, stats); err != nil {
		return stats, err
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush resolved references: %w", err)
	}

	e.log.Info().
		Interface("resolved_by_strategy", stats.ResolvedByStrategy).
		Interface("unresolved_by_kind", stats.UnresolvedByKind).
		Msg("pass 2 resolution complete")

	return stats, nil
}

func (e *Engine) index(table *SymbolTable, files []PendingFile) {
	for _, f := range files {
		table.FilesByPath[f.Path] = fileSymbolID(f.Path)
		for i, sym := range f.Result.Symbols {
			if i >= len(f.SymbolIDs) {
				break
			}
			id := f.SymbolIDs[i]
			s := model.Symbol{ID: id, Kind: sym.Kind, Name: sym.Name, QualifiedName: sym.QualifiedName, Language: f.Language, FilePath: f.Path}
			table.ByID[id] = s
			table.ByFQN[fqnKey(f.Language, sym.Kind, sym.QualifiedName)] = id
			table.ByQNAnyKind[f.Language+"\x00"+sym.QualifiedName] = append(table.ByQNAnyKind[f.Language+"\x00"+sym.QualifiedName], id)
			short := shortNameOf(sym.QualifiedName)
			table.ByShortName[f.Language+"\x00"+short] = append(table.ByShortName[f.Language+"\x00"+short], id)
			ns := namespaceOf(sym.QualifiedName)
			table.ByNamespace[f.Language+"\x00"+ns] = append(table.ByNamespace[f.Language+"\x00"+ns], id)
		}
	}
}

// ByQN returns a symbol's id by exact (language, qualified_name), any
// kind, only when the match is unambiguous.
func (t *SymbolTable) ByQN(lang, qn string) (string, bool) {
	ids := t.ByQNAnyKind[lang+"\x00"+qn]
	if len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

func fileSymbolID(path string) string { return store.FilesystemFingerprint(path) }

// resolveOne applies the six ordered strategies to one raw reference,
// writing a Reference row (resolved or external) through w.
func (e *Engine) resolveOne(w *store.Writer, table *SymbolTable, f PendingFile, ref collector.RawReference, stats *Stats) error {
	sourceID, ok := resolveSourceSymbol(table, f, ref)
	if !ok {
		return nil
	}

	targetID, strategy, ok := e.resolveTarget(table, f, ref)
	if !ok {
		targetID = externalPlaceholderID(f.Language, ref.TargetRaw)
		if err := w.PutSymbols([]model.Symbol{{
			ID: targetID, Kind: model.KindExternalPlaceholder, Name: shortNameOf(ref.TargetRaw),
			QualifiedName: ref.TargetRaw, Language: f.Language, FilePath: model.ExternalFilePath,
		}}); err != nil {
			return fmt.Errorf("stage external placeholder: %w", err)
		}
		stats.UnresolvedByKind[ref.Kind]++
	} else {
		stats.ResolvedByStrategy[strategy]++
	}

	if sourceID == targetID {
		return nil // self-reference, not an edge per spec's dedup expectations
	}

	if err := w.PutReferences([]model.Reference{{
		SourceID: sourceID, TargetID: targetID, TargetRaw: ref.TargetRaw, Kind: ref.Kind,
		Line: ref.Line, Column: ref.Column, Context: ref.Context,
	}}); err != nil {
		return fmt.Errorf("stage reference: %w", err)
	}
	return nil
}

func resolveSourceSymbol(table *SymbolTable, f PendingFile, ref collector.RawReference) (string, bool) {
	if ref.FromQN == "<file>" || ref.FromQN == "" {
		return fileSymbolID(f.Path), true
	}
	if id, ok := table.ByQN(f.Language, ref.FromQN); ok {
		return id, true
	}
	return "", false
}

// resolveTarget implements spec §4.4's six ordered strategies.
func (e *Engine) resolveTarget(table *SymbolTable, f PendingFile, ref collector.RawReference) (id string, strategy string, ok bool) {
	compatibleKinds := compatibleKindsFor(ref.Kind)
	raw := ref.TargetRaw

	// 1. Exact FQN.
	if isAbsoluteName(raw) {
		if id, ok := lookupExact(table, f.Language, raw, compatibleKinds); ok {
			return id, "exact_fqn", true
		}
	}

	// 2. Scope + imports.
	if id, ok := resolveViaScope(table, f, ref, compatibleKinds); ok {
		return id, "scope_imports", true
	}

	// 3. Built-in types.
	if builtinTypes[f.Language][raw] {
		return builtinPlaceholderID(f.Language, raw), "builtin_type", true
	}

	// 4. Namespace fallback: unqualified identifier, search same namespace.
	if !strings.ContainsAny(raw, ".\\:#") {
		ns := namespaceOf(currentQNOrFile(f, ref))
		candidates := table.ByNamespace[f.Language+"\x00"+ns]
		if id, ok := uniqueMatchingKind(table, candidates, raw, compatibleKinds); ok {
			return id, "namespace_fallback", true
		}
	}

	// 5. Partial suffix: unique internal symbol whose qualified_name ends with raw.
	if id, ok := uniqueSuffixMatch(table, f.Language, raw, compatibleKinds); ok {
		return id, "partial_suffix", true
	}

	// 6. External placeholder — caller creates it.
	return "", "", false
}

func compatibleKindsFor(refKind string) []string {
	switch refKind {
	case model.RefExtends:
		return []string{model.KindClass, model.KindTrait}
	case model.RefImplements:
		return []string{model.KindInterface}
	case model.RefUsesTrait:
		return []string{model.KindTrait}
	case model.RefCalls, model.RefCallsStatic:
		return []string{model.KindMethod, model.KindFunction}
	case model.RefAccessesRead, model.RefAccessesWrite:
		return []string{model.KindProperty, model.KindField}
	case model.RefInstantiates, model.RefInstanceof, model.RefParameterType, model.RefReturnsType, model.RefThrows:
		return []string{model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum}
	case model.RefImports:
		return []string{model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum, model.KindFunction, model.KindModule, model.KindNamespace}
	}
	return nil
}

func isAbsoluteName(raw string) bool {
	return strings.HasPrefix(raw, "\\") || strings.Contains(raw, "::") || strings.Count(raw, ".") > 0 || strings.Count(raw, "\\") > 0
}

func lookupExact(table *SymbolTable, lang, raw string, kinds []string) (string, bool) {
	qn := strings.TrimPrefix(raw, "\\")
	for _, k := range kinds {
		if id, ok := table.ByFQN[fqnKey(lang, k, qn)]; ok {
			return id, true
		}
	}
	if len(kinds) == 0 {
		if id, ok := table.ByQN(lang, qn); ok {
			return id, true
		}
	}
	return "", false
}

// resolveViaScope resolves raw against f's active import map and
// enclosing namespace; aliased imports override same-name symbols in
// scope; self/static resolve to the enclosing class and parent to that
// class's extends target.
func resolveViaScope(table *SymbolTable, f PendingFile, ref collector.RawReference, kinds []string) (string, bool) {
	raw := ref.TargetRaw
	switch raw {
	case "self", "static":
		owner := ownerOf(ref.FromQN)
		if id, ok := table.ByQN(f.Language, owner); ok {
			return id, true
		}
		return "", false
	case "parent":
		owner := ownerOf(ref.FromQN)
		for _, r := range f.Result.References {
			if r.Kind == model.RefExtends && r.FromQN == owner && r.TargetRaw != "parent" {
				if id, ok := lookupExact(table, f.Language, r.TargetRaw, compatibleKindsFor(r.Kind)); ok {
					return id, true
				}
				return resolveViaScope(table, f, r, compatibleKindsFor(r.Kind))
			}
		}
		return "", false
	}

	for _, imp := range f.Imports {
		if imp.LocalName == raw || lastSegment(imp.TargetRaw) == raw {
			if id, ok := lookupExact(table, f.Language, imp.TargetRaw, kinds); ok {
				return id, true
			}
		}
	}

	qualified := f.Namespace
	if qualified != "" {
		qualified += nsSeparator(f.Language) + raw
	} else {
		qualified = raw
	}
	if id, ok := lookupExact(table, f.Language, qualified, kinds); ok {
		return id, true
	}
	return "", false
}

func nsSeparator(lang string) string {
	if lang == "php" {
		return "\\"
	}
	return "."
}

func ownerOf(fromQN string) string {
	for _, sep := range []string{"::", "#"} {
		if idx := strings.LastIndex(fromQN, sep); idx >= 0 {
			return fromQN[:idx]
		}
	}
	return fromQN
}

func lastSegment(qn string) string {
	qn = strings.TrimPrefix(qn, "\\")
	for _, sep := range []string{"\\", "."} {
		if idx := strings.LastIndex(qn, sep); idx >= 0 {
			return qn[idx+len(sep):]
		}
	}
	return qn
}

func currentQNOrFile(f PendingFile, ref collector.RawReference) string {
	if ref.FromQN != "" && ref.FromQN != "<file>" {
		return ref.FromQN
	}
	return f.Namespace
}

func uniqueMatchingKind(table *SymbolTable, candidates []string, raw string, kinds []string) (string, bool) {
	var matches []string
	kindSet := kindSetOf(kinds)
	for _, id := range candidates {
		sym := table.ByID[id]
		if shortNameOf(sym.QualifiedName) != raw {
			continue
		}
		if len(kindSet) > 0 && !kindSet[sym.Kind] {
			continue
		}
		matches = append(matches, id)
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

func uniqueSuffixMatch(table *SymbolTable, lang, raw string, kinds []string) (string, bool) {
	kindSet := kindSetOf(kinds)
	var matches []string
	for id, sym := range table.ByID {
		if sym.Language != lang {
			continue
		}
		if len(kindSet) > 0 && !kindSet[sym.Kind] {
			continue
		}
		if strings.HasSuffix(sym.QualifiedName, raw) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

func kindSetOf(kinds []string) map[string]bool {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func externalPlaceholderID(lang, raw string) string {
	return store.ExternalFingerprint(lang, strings.TrimPrefix(raw, "\\"))
}

func builtinPlaceholderID(lang, name string) string {
	return store.ExternalFingerprint(lang, name)
}
