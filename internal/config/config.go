// Package config loads and validates project configuration (spec §6):
// a declarative YAML document naming the project root, enabled
// languages, storage locations, graph-store connection, parsing
// limits, import sizing knobs, and the metadata/API-helper rule sets
// that keep C5/C6 framework-agnostic. Grounded on the teacher's
// LoadConfig (defaults applied, then env/flag overrides layered on
// top), adapted from environment variables to a YAML document since
// the pipeline's option surface is too wide for flags/env alone.
package config

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/codegraph/indexer/internal/metadata"
)

// ImportStrategy selects the materializer back end (spec §6).
type ImportStrategy string

const (
	ImportDirectBulk   ImportStrategy = "direct-bulk"
	ImportParallelBulk ImportStrategy = "parallel-bulk"
	ImportFileDump     ImportStrategy = "file-dump"
)

// Config is the top-level project configuration document.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Storage StorageConfig `yaml:"storage"`
	Graph   GraphConfig   `yaml:"graph"`
	Parsing ParsingConfig `yaml:"parsing"`
	Import  ImportConfig  `yaml:"import"`
	Plugins PluginsConfig `yaml:"plugins"`
}

type ProjectConfig struct {
	Root      string   `yaml:"root"`
	Languages []string `yaml:"languages"`
}

type StorageConfig struct {
	CachePath string `yaml:"cache_path"`
}

type GraphConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	WipeBeforeImport bool   `yaml:"wipe_before_import"`
}

type ParsingConfig struct {
	IgnorePatterns []string `yaml:"ignore_patterns"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	MaxFileSize    int64    `yaml:"max_file_size"`
	FileTimeoutMS  int      `yaml:"file_timeout_ms"`
}

type ImportConfig struct {
	Strategy          ImportStrategy `yaml:"strategy"`
	NodeBatch         int            `yaml:"node_batch"`
	RelationshipBatch int            `yaml:"relationship_batch"`
	ParallelWorkers   int            `yaml:"parallel_workers"`
}

// MetadataRule is the YAML-friendly form of metadata.Rule: one entry
// per (path glob, config key) pair (spec §6 plugins.metadata_rules).
type MetadataRule struct {
	PathGlob         string `yaml:"path_glob"`
	Key              string `yaml:"key"`
	RegistrationKind string `yaml:"registration_kind"`
	ManagerClass     string `yaml:"manager_class,omitempty"`
}

// APIHelper describes one call-expression shape to treat as an HTTP
// client call (spec §6 plugins.api_helpers), e.g. {Receiver: "axios",
// Method: "get", Verb: "GET"}. The loaded table is kept on Config; no
// collector reads it (jsfamily recognizes any member call whose method
// name is an HTTP verb).
type APIHelper struct {
	Receiver string `yaml:"receiver"`
	Method   string `yaml:"method"`
	Verb     string `yaml:"verb"`
}

type PluginsConfig struct {
	MetadataRules []MetadataRule         `yaml:"metadata_rules"`
	APIHelpers    map[string][]APIHelper `yaml:"api_helpers"` // language -> helpers
}

// Overrides carries the CLI's optional flag overrides (spec §6 CLI surface).
type Overrides struct {
	GraphEndpoint    string
	WipeBeforeImport *bool
	ImportStrategy   string
	ParallelWorkers  int
}

// Load reads and validates the YAML document at path, applying any CLI
// overrides before validation.
func Load(path string, overrides Overrides) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyOverrides(&cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Import.NodeBatch <= 0 {
		cfg.Import.NodeBatch = 1000
	}
	if cfg.Import.RelationshipBatch <= 0 {
		cfg.Import.RelationshipBatch = 1000
	}
	if cfg.Import.ParallelWorkers <= 0 {
		cfg.Import.ParallelWorkers = 4
	}
	if cfg.Import.Strategy == "" {
		cfg.Import.Strategy = ImportParallelBulk
	}
	if cfg.Graph.Database == "" {
		cfg.Graph.Database = "neo4j"
	}
	if cfg.Parsing.MaxFileSize <= 0 {
		cfg.Parsing.MaxFileSize = 5 * 1024 * 1024
	}
	if cfg.Parsing.FileTimeoutMS <= 0 {
		cfg.Parsing.FileTimeoutMS = 10_000
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.GraphEndpoint != "" {
		cfg.Graph.Endpoint = o.GraphEndpoint
	}
	if o.WipeBeforeImport != nil {
		cfg.Graph.WipeBeforeImport = *o.WipeBeforeImport
	}
	if o.ImportStrategy != "" {
		cfg.Import.Strategy = ImportStrategy(o.ImportStrategy)
	}
	if o.ParallelWorkers > 0 {
		cfg.Import.ParallelWorkers = o.ParallelWorkers
	}
}

// Validate checks the document is internally consistent. A non-nil
// error here maps to exit code 2 (spec §6/§7: "configuration invalid ->
// orchestrator startup fatal").
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project.root is required")
	}
	if len(c.Project.Languages) == 0 {
		return fmt.Errorf("project.languages must name at least one language")
	}
	if c.Storage.CachePath == "" {
		return fmt.Errorf("storage.cache_path is required")
	}
	switch c.Import.Strategy {
	case ImportDirectBulk, ImportParallelBulk, ImportFileDump:
	default:
		return fmt.Errorf("import.strategy %q is not one of direct-bulk, parallel-bulk, file-dump", c.Import.Strategy)
	}
	for _, p := range c.Parsing.IgnorePatterns {
		if _, err := doublestar.Match(p, "probe"); err != nil {
			return fmt.Errorf("parsing.ignore_patterns entry %q is not a valid glob: %w", p, err)
		}
	}
	for _, r := range c.Plugins.MetadataRules {
		if _, err := doublestar.Match(r.PathGlob, "probe"); err != nil {
			return fmt.Errorf("plugins.metadata_rules path_glob %q is not a valid glob: %w", r.PathGlob, err)
		}
	}
	return nil
}

// MetadataRules converts the YAML-level rule set into metadata.Rule values.
func (c *Config) MetadataRules() []metadata.Rule {
	out := make([]metadata.Rule, 0, len(c.Plugins.MetadataRules))
	for _, r := range c.Plugins.MetadataRules {
		out = append(out, metadata.Rule{
			PathGlob: r.PathGlob, Key: r.Key, RegistrationKind: r.RegistrationKind, ManagerClass: r.ManagerClass,
		})
	}
	return out
}
