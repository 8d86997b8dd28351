// Package pipeline implements the Pipeline Orchestrator (C8, spec
// §4.8): Index runs filesystem enumeration, Pass 1 collection, Pass 2
// resolution, the metadata pass and cross-language linking, in that
// order, with a bounded worker pool over Pass 1; Materialize writes a
// built cache to the graph store as a separate step. Grounded on
// the teacher's core.FileWalker (channel-fed worker pool, doublestar
// ignore matching, symlink-cycle guard via a visited set) generalized
// from "list files matching a scope" to "list files, then hand each one
// through parse -> collect -> stage".
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/linker"
	"github.com/codegraph/indexer/internal/materialize"
	"github.com/codegraph/indexer/internal/metadata"
	"github.com/codegraph/indexer/internal/resolver"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// Options configures one Pipeline. It is the runtime counterpart of
// config.Config: the orchestrator never reads YAML itself, cmd/codegraph
// translates a loaded config.Config into Options.
type Options struct {
	Root           string
	IgnorePatterns []string
	FollowSymlinks bool
	MaxFileSize    int64
	FileTimeout    time.Duration
	Workers        int

	Driver     *ast.Driver
	Collectors map[string]collector.Collector // language -> collector

	MetadataRules []metadata.Rule

	Log zerolog.Logger
}

// extensionLanguage maps a file extension to the ast/collector language
// tag. Python carries a grammar (ast.DefaultGrammars) but no collector
// yet, so it is intentionally absent here (spec C2 names only the PHP
// and JS/TS families as required).
var extensionLanguage = map[string]string{
	".php":  ast.LangPHP,
	".js":   ast.LangJavaScript,
	".jsx":  ast.LangJavaScript,
	".mjs":  ast.LangJavaScript,
	".cjs":  ast.LangJavaScript,
	".ts":   ast.LangTypeScript,
	".tsx":  ast.LangTypeScript,
}

// Stats accumulates the run-wide counters spec §4.8 requires.
type Stats struct {
	FilesScanned int
	FilesParsed  int
	FilesSkipped int
	SkipReasons  map[string]int

	SymbolsByKind    map[string]int
	ReferencesByKind map[string]int
	UnresolvedByKind map[string]int

	PhaseDurations map[string]time.Duration

	Endpoints        int
	APICallsMatched  int
	APICallsExternal int
}

func newStats() *Stats {
	return &Stats{
		SkipReasons:      make(map[string]int),
		SymbolsByKind:    make(map[string]int),
		ReferencesByKind: make(map[string]int),
		UnresolvedByKind: make(map[string]int),
		PhaseDurations:   make(map[string]time.Duration),
	}
}

// Pipeline runs the full index sequence against one cache database.
type Pipeline struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU() * 2
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = 10 * time.Second
	}
	return &Pipeline{opts: opts, log: opts.Log.With().Str("component", "pipeline").Logger()}
}

// discoveredFile is one enumerated path plus its detected language.
type discoveredFile struct {
	path     string
	relPath  string
	language string
}

// Index runs filesystem enumeration through cross-language linking,
// staging every symbol/reference into w. It never fails the run over a
// single file's parse error (spec §4.8: "parse errors on individual
// files do not fail the run"); it does fail over a canceled context or
// a store write error, since those are unrecoverable.
func (p *Pipeline) Index(ctx context.Context, w *store.Writer, db *gorm.DB) (*Stats, error) {
	stats := newStats()

	start := time.Now()
	files, err := p.enumerate(ctx, stats)
	if err != nil {
		return stats, fmt.Errorf("enumerate project files: %w", err)
	}
	stats.PhaseDurations["enumerate"] = time.Since(start)

	if err := p.writeFilesystemSymbols(w, files); err != nil {
		return stats, err
	}

	start = time.Now()
	pending, err := p.collectAll(ctx, w, files, stats)
	if err != nil {
		return stats, fmt.Errorf("pass 1 collection: %w", err)
	}
	stats.PhaseDurations["pass1"] = time.Since(start)

	start = time.Now()
	engine := resolver.NewEngine(p.log)
	resolveStats, err := engine.Resolve(ctx, w, toPendingFiles(pending))
	if err != nil {
		return stats, fmt.Errorf("pass 2 resolution: %w", err)
	}
	for k, v := range resolveStats.ResolvedByStrategy {
		stats.ReferencesByKind[k] += v
	}
	for k, v := range resolveStats.UnresolvedByKind {
		stats.UnresolvedByKind[k] += v
	}
	stats.PhaseDurations["pass2"] = time.Since(start)

	if len(p.opts.MetadataRules) > 0 {
		start = time.Now()
		scanner := metadata.New(p.opts.Root, p.opts.MetadataRules, p.log)
		resolveClassID := func(_, qn string) (string, bool) {
			return lookupSymbolByQN(db, qn)
		}
		if _, err := scanner.Scan(w, resolveClassID); err != nil {
			return stats, fmt.Errorf("metadata pass: %w", err)
		}
		stats.PhaseDurations["metadata"] = time.Since(start)
	}

	start = time.Now()
	routes := conventionRoutes(pending)
	callSites := apiCallSites(db, pending)
	if len(routes) > 0 || len(callSites) > 0 {
		lk := linker.New(p.log)
		linkStats, err := lk.Link(w, routes, callSites)
		if err != nil {
			return stats, fmt.Errorf("cross-language link: %w", err)
		}
		stats.Endpoints = linkStats.Endpoints
		stats.APICallsMatched = linkStats.Matched
		stats.APICallsExternal = linkStats.Unmatched
	}
	stats.PhaseDurations["link"] = time.Since(start)

	if err := p.persistStats(db, stats); err != nil {
		p.log.Warn().Err(err).Msg("failed to persist run stats")
	}

	p.log.Info().
		Int("files_scanned", stats.FilesScanned).
		Int("files_parsed", stats.FilesParsed).
		Int("files_skipped", stats.FilesSkipped).
		Msg("index run complete")
	return stats, nil
}

// Materialize reads every staged symbol and reference out of the cache
// database and writes them to the graph store through m (spec §4.7,
// §4.8: "a run is considered successful when materialization
// completes"). It is the `codegraph materialize` subcommand's entry
// point, separate from Index so a cache built by one run can be
// re-materialized without re-parsing.
func (p *Pipeline) Materialize(ctx context.Context, db *gorm.DB, m *materialize.Materializer, wipeBeforeImport bool, wipeBatchSize int) (*materialize.Report, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if wipeBeforeImport {
		if err := m.WipeAll(ctx, wipeBatchSize); err != nil {
			return nil, err
		}
	}

	var symbols []model.Symbol
	if err := db.Find(&symbols).Error; err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	symbolReport, err := m.MaterializeSymbols(ctx, symbols)
	if err != nil {
		return symbolReport, fmt.Errorf("materialize symbols: %w", err)
	}

	var refs []model.Reference
	if err := db.Find(&refs).Error; err != nil {
		return symbolReport, fmt.Errorf("load references: %w", err)
	}
	refReport, err := m.MaterializeReferences(ctx, refs)
	if err != nil {
		return refReport, fmt.Errorf("materialize references: %w", err)
	}

	for label, n := range refReport.EdgesByKind {
		symbolReport.EdgesByKind[label] = n
	}
	for label, n := range refReport.FailedWrites {
		symbolReport.FailedWrites[label] = n
	}
	p.log.Info().
		Interface("nodes_by_label", symbolReport.NodesByLabel).
		Interface("edges_by_kind", symbolReport.EdgesByKind).
		Interface("failed_writes", symbolReport.FailedWrites).
		Msg("materialization complete")
	return symbolReport, nil
}

// enumerate walks Root, applying ignore globs, max-file-size and
// symlink policy, returning every file whose extension maps to a
// supported language.
func (p *Pipeline) enumerate(ctx context.Context, stats *Stats) ([]discoveredFile, error) {
	var out []discoveredFile
	visited := make(map[string]struct{})

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil // unreadable directory: skip, never fatal (spec §7)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(dir, entry.Name())
			rel, relErr := filepath.Rel(p.opts.Root, full)
			if relErr != nil {
				rel = full
			}
			rel = filepath.ToSlash(rel)
			if p.isIgnored(rel) {
				continue
			}

			if entry.Type()&os.ModeSymlink != 0 {
				if !p.opts.FollowSymlinks {
					continue
				}
				resolved, err := filepath.EvalSymlinks(full)
				if err != nil {
					continue
				}
				if _, seen := visited[resolved]; seen {
					continue // symlink cycle: skip, never fatal (spec §7)
				}
				visited[resolved] = struct{}{}
				info, err := os.Stat(resolved)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if err := walk(full); err != nil {
						return err
					}
					continue
				}
				full = resolved
			} else if entry.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}

			lang, ok := extensionLanguage[strings.ToLower(filepath.Ext(entry.Name()))]
			if !ok {
				continue
			}
			if _, hasCollector := p.opts.Collectors[lang]; !hasCollector {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			stats.FilesScanned++
			if p.opts.MaxFileSize > 0 && info.Size() > p.opts.MaxFileSize {
				stats.FilesSkipped++
				stats.SkipReasons["max_file_size"]++
				continue
			}
			out = append(out, discoveredFile{path: full, relPath: rel, language: lang})
		}
		return nil
	}

	if err := walk(p.opts.Root); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) isIgnored(rel string) bool {
	for _, pattern := range p.opts.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// writeFilesystemSymbols stages a directory/file symbol per discovered
// path plus the filesystem `contains` edges between them (spec §3:
// "contains is reserved for directory->file/directory").
func (p *Pipeline) writeFilesystemSymbols(w *store.Writer, files []discoveredFile) error {
	dirIDs := make(map[string]string)
	var symbols []model.Symbol
	var refs []model.Reference

	ensureDir := func(relDir string) string {
		if id, ok := dirIDs[relDir]; ok {
			return id
		}
		id := store.FilesystemFingerprint(relDir)
		dirIDs[relDir] = id
		name := filepath.Base(relDir)
		if relDir == "." {
			name = filepath.Base(p.opts.Root)
		}
		symbols = append(symbols, model.Symbol{
			ID: id, Kind: model.KindDirectory, Name: name, QualifiedName: relDir, Language: "meta", FilePath: relDir,
		})
		parent := filepath.ToSlash(filepath.Dir(relDir))
		if relDir != "." {
			parentID := ensureDir(parent)
			refs = append(refs, model.Reference{SourceID: parentID, TargetID: id, Kind: model.RefContains})
		}
		return id
	}

	for _, f := range files {
		fileID := store.FilesystemFingerprint(f.relPath)
		symbols = append(symbols, model.Symbol{
			ID: fileID, Kind: model.KindFile, Name: filepath.Base(f.relPath), QualifiedName: f.relPath,
			Language: f.language, FilePath: f.relPath,
		})
		dir := filepath.ToSlash(filepath.Dir(f.relPath))
		dirID := ensureDir(dir)
		refs = append(refs, model.Reference{SourceID: dirID, TargetID: fileID, Kind: model.RefContains})
	}

	if len(symbols) > 0 {
		if err := w.PutSymbols(symbols); err != nil {
			return fmt.Errorf("stage filesystem symbols: %w", err)
		}
	}
	if len(refs) > 0 {
		if err := w.PutReferences(refs); err != nil {
			return fmt.Errorf("stage filesystem contains edges: %w", err)
		}
	}
	return w.Flush()
}

// collected is one parsed file's Pass 1 output plus everything the
// resolver and linker need from it afterward.
type collected struct {
	path      string
	relPath   string
	language  string
	namespace string
	imports   []collector.ImportBinding
	result    *collector.Result
	symbolIDs []string
	qnToID    map[string]string
}

// collectAll parses and collects every discovered file through a
// bounded worker pool, staging declaration symbols and `defines` edges
// as each file completes.
func (p *Pipeline) collectAll(ctx context.Context, w *store.Writer, files []discoveredFile, stats *Stats) ([]collected, error) {
	var mu sync.Mutex
	var out []collected

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			fileCtx, cancel := context.WithTimeout(gctx, p.opts.FileTimeout)
			defer cancel()

			c, skipReason, err := p.collectOne(fileCtx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return err // cancellation propagates
				}
				stats.FilesSkipped++
				stats.SkipReasons[skipReason]++
				p.log.Warn().Err(err).Str("file", f.relPath).Str("reason", skipReason).Msg("skipping file")
				return nil
			}
			stats.FilesParsed++
			for _, sym := range c.result.Symbols {
				stats.SymbolsByKind[sym.Kind]++
			}
			out = append(out, *c)
			return writeDeclarations(w, c)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) collectOne(ctx context.Context, f discoveredFile) (*collected, string, error) {
	src, err := os.ReadFile(f.path)
	if err != nil {
		return nil, "unreadable", err
	}

	tree, err := p.opts.Driver.Parse(ctx, f.language, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "parse_timeout", ctx.Err()
		}
		return nil, "parse_error", err
	}

	coll := p.opts.Collectors[f.language]
	result, err := coll.Collect(tree, f.relPath)
	if err != nil {
		return nil, "parse_error", err
	}

	symbolIDs := make([]string, len(result.Symbols))
	qnToID := make(map[string]string, len(result.Symbols))
	for i, sym := range result.Symbols {
		id := store.Fingerprint(f.language, sym.Kind, sym.QualifiedName, f.relPath)
		symbolIDs[i] = id
		qnToID[sym.QualifiedName] = id
	}

	return &collected{
		path: f.path, relPath: f.relPath, language: f.language, namespace: result.Namespace,
		imports: result.Imports, result: result, symbolIDs: symbolIDs, qnToID: qnToID,
	}, "", nil
}

// writeDeclarations stages one file's declaration symbols and the
// `defines` edge from each symbol's parent (file, for top-level
// declarations; another declaration, for nested members).
func writeDeclarations(w *store.Writer, c *collected) error {
	symbols := make([]model.Symbol, 0, len(c.result.Symbols))
	refs := make([]model.Reference, 0, len(c.result.Symbols))
	fileID := store.FilesystemFingerprint(c.relPath)

	for i, sym := range c.result.Symbols {
		id := c.symbolIDs[i]
		parentID := fileID
		if sym.ParentQN != "" {
			if pid, ok := c.qnToID[sym.ParentQN]; ok {
				parentID = pid
			}
		}
		symbols = append(symbols, model.Symbol{
			ID: id, Kind: sym.Kind, Name: sym.Name, QualifiedName: sym.QualifiedName,
			Language: c.language, FilePath: c.relPath, Line: sym.Line, Column: sym.Column, ParentID: parentID,
			Modifiers: sym.Modifiers, Signature: sym.Signature, DeclaredTypes: sym.DeclaredTypes, Docblock: sym.Docblock,
		})
		refs = append(refs, model.Reference{SourceID: parentID, TargetID: id, Kind: model.RefDefines})
	}

	if len(symbols) > 0 {
		if err := w.PutSymbols(symbols); err != nil {
			return fmt.Errorf("stage declarations for %s: %w", c.relPath, err)
		}
	}
	if len(refs) > 0 {
		if err := w.PutReferences(refs); err != nil {
			return fmt.Errorf("stage defines edges for %s: %w", c.relPath, err)
		}
	}
	return nil
}

func toPendingFiles(collected []collected) []resolver.PendingFile {
	out := make([]resolver.PendingFile, len(collected))
	for i, c := range collected {
		out[i] = resolver.PendingFile{
			Path: c.relPath, Language: c.language, Namespace: c.namespace,
			Imports: c.imports, Result: c.result, SymbolIDs: c.symbolIDs,
		}
	}
	return out
}

// conventionRoutes derives handler routes from the controller/action
// naming convention spec §8 scenario 3 names: a class named
// "*Controller" with methods named "action*" serves GET
// "/{Base}/action/{name}" (e.g. UserController.actionList ->
// GET /User/action/list). Metadata-harvested explicit route
// registrations are not implemented: no rule in the metadata Rule
// schema carries an HTTP method/path pair (see DESIGN.md).
func conventionRoutes(files []collected) []linker.HandlerRoute {
	var routes []linker.HandlerRoute
	for _, f := range files {
		classes := make(map[string]bool)
		for _, sym := range f.result.Symbols {
			if sym.Kind == model.KindClass && strings.HasSuffix(sym.Name, "Controller") {
				classes[sym.QualifiedName] = true
			}
		}
		if len(classes) == 0 {
			continue
		}
		for i, sym := range f.result.Symbols {
			if sym.Kind != model.KindMethod || !classes[sym.ParentQN] {
				continue
			}
			if !strings.HasPrefix(sym.Name, "action") || len(sym.Name) <= len("action") {
				continue
			}
			base := strings.TrimSuffix(lastSegment(sym.ParentQN), "Controller")
			action := strings.TrimPrefix(sym.Name, "action")
			path := "/" + base + "/action/" + strings.ToLower(action)
			routes = append(routes, linker.HandlerRoute{
				SymbolID: f.symbolIDs[i], Language: f.language, Method: "GET", Path: path,
			})
		}
	}
	return routes
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

// apiCallSites extracts api_call_site raw references across every
// collected file, resolving each one's source symbol the same way the
// resolver does (method/function owner, or the file itself).
func apiCallSites(db *gorm.DB, files []collected) []linker.CallSite {
	var sites []linker.CallSite
	for _, f := range files {
		fileID := store.FilesystemFingerprint(f.relPath)
		for _, ref := range f.result.References {
			if ref.Kind != model.RefAPICalls {
				continue
			}
			sourceID := fileID
			if id, ok := f.qnToID[ref.FromQN]; ok {
				sourceID = id
			}
			sites = append(sites, linker.CallSite{
				SourceID: sourceID, Language: f.language, Method: ref.HTTPMethod, Path: ref.HTTPPath,
				Line: ref.Line, Column: ref.Column,
			})
		}
	}
	return sites
}

// lookupSymbolByQN resolves a qualified name to a symbol id for the
// metadata pass (spec §4.6 needs a way to turn a discovered class name
// into the id registered_in/loads_via_config edges attach to).
func lookupSymbolByQN(db *gorm.DB, qn string) (string, bool) {
	var row model.Symbol
	err := db.Where("qualified_name = ?", qn).First(&row).Error
	if err != nil {
		return "", false
	}
	return row.ID, true
}

func (p *Pipeline) persistStats(db *gorm.DB, stats *Stats) error {
	var rows []model.RunStats
	rows = append(rows,
		model.RunStats{Phase: "scan", Counter: "files_scanned", Value: int64(stats.FilesScanned)},
		model.RunStats{Phase: "scan", Counter: "files_parsed", Value: int64(stats.FilesParsed)},
		model.RunStats{Phase: "scan", Counter: "files_skipped", Value: int64(stats.FilesSkipped)},
	)
	for reason, n := range stats.SkipReasons {
		rows = append(rows, model.RunStats{Phase: "scan", Counter: "skip:" + reason, Value: int64(n)})
	}
	for kind, n := range stats.SymbolsByKind {
		rows = append(rows, model.RunStats{Phase: "pass1", Counter: "symbol:" + kind, Value: int64(n)})
	}
	for kind, n := range stats.ReferencesByKind {
		rows = append(rows, model.RunStats{Phase: "pass2", Counter: "resolved:" + kind, Value: int64(n)})
	}
	for kind, n := range stats.UnresolvedByKind {
		rows = append(rows, model.RunStats{Phase: "pass2", Counter: "unresolved:" + kind, Value: int64(n)})
	}
	for phase, d := range stats.PhaseDurations {
		rows = append(rows, model.RunStats{Phase: phase, Counter: "wall_time_ms", Value: d.Milliseconds()})
	}
	return db.CreateInBatches(rows, 200).Error
}
