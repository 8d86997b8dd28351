// Package linker implements the Cross-Language Linker (C5, spec §4.5):
// endpoint synthesis from framework-convention handler methods, then
// call-site matching of api_call_site raw references against the
// synthesized endpoint set via normalized METHOD+path fingerprints.
// Grounded on the same resolved-symbol-table handoff the resolver
// package establishes, and on the normalization idiom of
// other_examples' maraichr-codegraph cross-language resolver (upper-
// casing the HTTP method, collapsing placeholder syntax to one
// canonical form before comparison).
package linker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// HandlerRoute is one HTTP-handler candidate, as built by the pipeline's
// naming-convention pass: a callable symbol plus the route it serves.
type HandlerRoute struct {
	SymbolID string // the method/function symbol that handles this route
	Language string
	Method   string
	Path     string
}

// CallSite is one api_call_site raw reference, already attached to its
// enclosing symbol (or its file) by the pipeline's source-symbol lookup.
type CallSite struct {
	SourceID string
	Language string
	Method   string
	Path     string
	Line     int
	Column   int
}

// Linker synthesizes api_endpoint symbols and links call sites to them.
type Linker struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Linker {
	return &Linker{log: log.With().Str("component", "linker").Logger()}
}

// Stats reports how many endpoints were synthesized and how many call
// sites matched vs. fell back to an external placeholder endpoint.
type Stats struct {
	Endpoints    int
	Matched      int
	Unmatched    int
}

// Link synthesizes the endpoint set from routes, then resolves every
// call site against it, writing api_endpoint symbols and api_calls /
// handler edges through w.
func (l *Linker) Link(w *store.Writer, routes []HandlerRoute, callSites []CallSite) (*Stats, error) {
	stats := &Stats{}

	endpointID := make(map[string]string) // normalized "METHOD path" -> endpoint symbol id
	var endpointSymbols []model.Symbol
	for _, r := range routes {
		key := normalize(r.Method, r.Path)
		id, ok := endpointID[key]
		if !ok {
			id = "endpoint:" + key
			endpointID[key] = id
			endpointSymbols = append(endpointSymbols, model.Symbol{
				ID: id, Kind: model.KindAPIEndpoint, Name: key, QualifiedName: key,
				Language: "meta", FilePath: model.ExternalFilePath,
			})
			stats.Endpoints++
		}
	}
	if len(endpointSymbols) > 0 {
		if err := w.PutSymbols(endpointSymbols); err != nil {
			return stats, fmt.Errorf("stage endpoint symbols: %w", err)
		}
	}

	var handlerRefs []model.Reference
	for _, r := range routes {
		key := normalize(r.Method, r.Path)
		id := endpointID[key]
		handlerRefs = append(handlerRefs, model.Reference{
			SourceID: r.SymbolID, TargetID: id, Kind: model.RefImplements, Context: "api_handler",
		})
	}

	var callRefs []model.Reference
	var externalSymbols []model.Symbol
	seenExternal := make(map[string]bool)
	for _, cs := range callSites {
		key := normalize(cs.Method, cs.Path)
		targetID, ok := endpointID[key]
		if !ok {
			targetID = "endpoint:external:" + key
			if !seenExternal[targetID] {
				seenExternal[targetID] = true
				externalSymbols = append(externalSymbols, model.Symbol{
					ID: targetID, Kind: model.KindAPIEndpoint, Name: key, QualifiedName: key,
					Language: "meta", FilePath: model.ExternalFilePath,
				})
			}
			stats.Unmatched++
		} else {
			stats.Matched++
		}
		callRefs = append(callRefs, model.Reference{
			SourceID: cs.SourceID, TargetID: targetID, Kind: model.RefAPICalls,
			Line: cs.Line, Column: cs.Column, Context: "api_call_site",
		})
	}

	if len(externalSymbols) > 0 {
		if err := w.PutSymbols(externalSymbols); err != nil {
			return stats, fmt.Errorf("stage external endpoint symbols: %w", err)
		}
	}
	if len(handlerRefs) > 0 {
		if err := w.PutReferences(handlerRefs); err != nil {
			return stats, fmt.Errorf("stage handler edges: %w", err)
		}
	}
	if len(callRefs) > 0 {
		if err := w.PutReferences(callRefs); err != nil {
			return stats, fmt.Errorf("stage call-site edges: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush linker output: %w", err)
	}

	l.log.Info().Int("endpoints", stats.Endpoints).Int("matched", stats.Matched).Int("unmatched", stats.Unmatched).Msg("cross-language link complete")
	return stats, nil
}

var placeholderPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)|\{([A-Za-z_][A-Za-z0-9_]*)\}|<([A-Za-z_][A-Za-z0-9_]*)>`)

// normalize produces the canonical "METHOD path" fingerprint spec §4.5
// and §8's API-normalization property require: upper-case method,
// leading slash stripped, repeated slashes collapsed, and every
// framework's placeholder syntax (:id, {id}, <id>) replaced with one
// canonical `{}` token.
func normalize(method, path string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	path = strings.ToLower(strings.TrimSpace(path))
	path = strings.TrimPrefix(path, "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = placeholderPattern.ReplaceAllString(path, "{}")
	return method + " " + path
}
