package metadata_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/indexer/internal/metadata"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

func TestScanRegistersClassFromYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	yamlBody := "services:\n  logger:\n    class: App.Services.Logger\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "services.yaml"), []byte(yamlBody), 0o644))

	db, err := store.Connect(filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	w := store.NewWriter(db, 10)

	require.NoError(t, db.Create(&model.Symbol{
		ID: "logger-class-id", Kind: model.KindClass, Name: "Logger", QualifiedName: "App.Services.Logger",
		Language: "php", FilePath: "src/Logger.php",
	}).Error)

	rules := []metadata.Rule{
		{PathGlob: "config/**/*.yaml", Key: "class", RegistrationKind: "service_definition"},
	}
	resolve := func(_, qn string) (string, bool) {
		if qn == "App.Services.Logger" {
			return "logger-class-id", true
		}
		return "", false
	}

	scanner := metadata.New(root, rules, zerolog.Nop())
	stats, err := scanner.Scan(w, resolve)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesScanned)
	assert.Equal(t, 1, stats.Registered)

	var cfgCount int64
	require.NoError(t, db.Model(&model.ConfigReference{}).Count(&cfgCount).Error)
	assert.Equal(t, int64(1), cfgCount)

	var regCount int64
	require.NoError(t, db.Model(&model.Reference{}).Where("kind = ?", model.RefRegisteredIn).Count(&regCount).Error)
	assert.Equal(t, int64(1), regCount)
}
