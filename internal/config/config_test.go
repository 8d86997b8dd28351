package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /srv/app
  languages: [php, typescript]
storage:
  cache_path: /tmp/cache.db
`)
	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Import.NodeBatch)
	assert.Equal(t, 1000, cfg.Import.RelationshipBatch)
	assert.Equal(t, 4, cfg.Import.ParallelWorkers)
	assert.Equal(t, ImportParallelBulk, cfg.Import.Strategy)
	assert.Equal(t, "neo4j", cfg.Graph.Database)
	assert.Equal(t, int64(5*1024*1024), cfg.Parsing.MaxFileSize)
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /srv/app
  languages: [php]
storage:
  cache_path: /tmp/cache.db
graph:
  endpoint: bolt://localhost:7687
  wipe_before_import: false
`)
	wipe := true
	cfg, err := Load(path, Overrides{
		GraphEndpoint:    "bolt://override:7687",
		WipeBeforeImport: &wipe,
		ImportStrategy:   "file-dump",
		ParallelWorkers:  16,
	})
	require.NoError(t, err)

	assert.Equal(t, "bolt://override:7687", cfg.Graph.Endpoint)
	assert.True(t, cfg.Graph.WipeBeforeImport)
	assert.Equal(t, ImportFileDump, cfg.Import.Strategy)
	assert.Equal(t, 16, cfg.Import.ParallelWorkers)
}

func TestLoadRejectsMissingProjectRoot(t *testing.T) {
	path := writeConfig(t, `
storage:
  cache_path: /tmp/cache.db
`)
	_, err := Load(path, Overrides{})
	assert.Error(t, err)
}

func TestLoadRejectsUnknownImportStrategy(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /srv/app
  languages: [php]
storage:
  cache_path: /tmp/cache.db
import:
  strategy: quantum-bulk
`)
	_, err := Load(path, Overrides{})
	assert.Error(t, err)
}

func TestLoadRejectsInvalidGlob(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /srv/app
  languages: [php]
storage:
  cache_path: /tmp/cache.db
parsing:
  ignore_patterns: ["[invalid"]
`)
	_, err := Load(path, Overrides{})
	assert.Error(t, err)
}

func TestMetadataRulesConversion(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /srv/app
  languages: [php]
storage:
  cache_path: /tmp/cache.db
plugins:
  metadata_rules:
    - path_glob: "config/**/*.yaml"
      key: class
      registration_kind: service_definition
`)
	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)

	rules := cfg.MetadataRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "config/**/*.yaml", rules[0].PathGlob)
	assert.Equal(t, "service_definition", rules[0].RegistrationKind)
}
