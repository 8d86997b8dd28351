// Package metadata implements the Metadata Pass (C6, spec §4.6): it
// scans declarative JSON/YAML configuration artifacts under the
// project root for string values that look like fully qualified class
// names at a recognized configuration key, and emits
// registered_in/loads_via_config edges. The glob-driven file
// enumeration is grounded on the teacher's core/filewalker.go
// (doublestar pattern matching); nothing here hard-codes a framework —
// the recognized keys come entirely from Rules (spec: "No hard-coded
// framework heuristics belong in the core; they are injected").
package metadata

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// Rule maps a glob of config file paths to the configuration keys
// within them that register a class, and what kind of registration
// each key represents (e.g. "service" -> "service_definition").
type Rule struct {
	PathGlob       string
	Key            string
	RegistrationKind string
	// ManagerClass, if set, is the fully qualified name of the class that
	// loads entries registered under Key; a loads_via_config edge is
	// emitted from it to each discovered class (spec §4.6).
	ManagerClass string
}

// Scanner walks the project root applying Rules to every matching file.
type Scanner struct {
	root  string
	rules []Rule
	log   zerolog.Logger
}

func New(root string, rules []Rule, log zerolog.Logger) *Scanner {
	return &Scanner{root: root, rules: rules, log: log.With().Str("component", "metadata").Logger()}
}

// Stats reports how many config references were discovered.
type Stats struct {
	FilesScanned int
	Registered   int
}

// classNamePattern is a conservative heuristic for "looks like a fully
// qualified class name": at least one scope separator, identifier
// segments. It deliberately does not validate against any known
// language grammar — the metadata pass operates on plain strings.
var classNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*([\\.][A-Za-z_][A-Za-z0-9_]*)+$`)

// Scan walks root, applying every rule whose PathGlob matches a
// discovered file, and writes ConfigReference rows (plus the
// corresponding registered_in/loads_via_config Reference rows, once the
// classes they name have been fingerprinted) through w.
func (s *Scanner) Scan(w *store.Writer, resolveClassID func(language, qualifiedName string) (string, bool)) (*Stats, error) {
	stats := &Stats{}
	byGlob := make(map[string][]Rule)
	for _, r := range s.rules {
		byGlob[r.PathGlob] = append(byGlob[r.PathGlob], r)
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		var matched []Rule
		for glob, rules := range byGlob {
			ok, merr := doublestar.Match(glob, rel)
			if merr != nil || !ok {
				continue
			}
			matched = append(matched, rules...)
		}
		if len(matched) == 0 {
			return nil
		}

		values, err := parseValues(path)
		if err != nil {
			s.log.Warn().Err(err).Str("file", rel).Msg("skipping unparseable config file")
			return nil
		}
		stats.FilesScanned++

		var cfgRefs []model.ConfigReference
		var edges []model.Reference
		for _, rule := range matched {
			for _, className := range values[rule.Key] {
				if !classNamePattern.MatchString(className) {
					continue
				}
				cfgRefs = append(cfgRefs, model.ConfigReference{
					ConfigFile: rel, ConfigKey: rule.Key, ClassName: className, RegistrationKind: rule.RegistrationKind,
				})
				stats.Registered++

				configFileID := "config:" + rel
				if classID, ok := resolveClassID("", className); ok {
					edges = append(edges, model.Reference{SourceID: classID, TargetID: configFileID, Kind: model.RefRegisteredIn, Context: rule.RegistrationKind})
					if rule.ManagerClass != "" {
						if managerID, ok := resolveClassID("", rule.ManagerClass); ok {
							edges = append(edges, model.Reference{SourceID: managerID, TargetID: classID, Kind: model.RefLoadsViaConfig, Context: rule.RegistrationKind})
						}
					}
				}
			}
		}

		if len(cfgRefs) > 0 {
			if err := w.PutConfigReferences(cfgRefs); err != nil {
				return fmt.Errorf("stage config references for %s: %w", rel, err)
			}
		}
		if len(edges) > 0 {
			if err := w.PutSymbols([]model.Symbol{{
				ID: "config:" + rel, Kind: model.KindConfigFile, Name: filepath.Base(rel), QualifiedName: rel,
				Language: "meta", FilePath: rel,
			}}); err != nil {
				return fmt.Errorf("stage config-file symbol for %s: %w", rel, err)
			}
			if err := w.PutReferences(edges); err != nil {
				return fmt.Errorf("stage registration edges for %s: %w", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan config artifacts: %w", err)
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush metadata pass: %w", err)
	}
	s.log.Info().Int("files_scanned", stats.FilesScanned).Int("registered", stats.Registered).Msg("metadata pass complete")
	return stats, nil
}

// parseValues flattens a JSON or YAML document into key -> []string
// leaf values, keyed by the leaf map key regardless of nesting depth
// (config keys of interest, like "providers" or "imports", may appear
// at any level across frameworks).
func parseValues(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	values := make(map[string][]string)
	flatten("", doc, values)
	return values, nil
}

func flatten(key string, node interface{}, out map[string][]string) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			flatten(k, child, out)
		}
	case map[interface{}]interface{}: // yaml.v2-style maps some decoders still emit
		for k, child := range v {
			flatten(fmt.Sprintf("%v", k), child, out)
		}
	case []interface{}:
		for _, child := range v {
			flatten(key, child, out)
		}
	case string:
		if key != "" {
			out[key] = append(out[key], v)
		}
	}
}
