package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/collector/phpfamily"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

func TestIndexParsesControllerAndSynthesizesRoute(t *testing.T) {
	root := t.TempDir()
	src := `<?php
class UserController {
    public function actionList() {
        return [];
    }
}
`
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "UserController.php"), []byte(src), 0o644))

	db, err := store.Connect(filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	w := store.NewWriter(db, 10)

	p := pipeline.New(pipeline.Options{
		Root:    root,
		Workers: 2,
		Driver:  ast.NewDriver(ast.DefaultGrammars()...),
		Collectors: map[string]collector.Collector{
			ast.LangPHP: phpfamily.New(),
		},
		Log: zerolog.Nop(),
	})

	stats, err := p.Index(context.Background(), w, db)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesParsed)
	assert.Equal(t, 0, stats.FilesSkipped)
	assert.Equal(t, 1, stats.Endpoints)

	var classRow model.Symbol
	require.NoError(t, db.Where("qualified_name = ? AND kind = ?", "UserController", model.KindClass).First(&classRow).Error)
	assert.Equal(t, "src/UserController.php", classRow.FilePath)

	var endpointRow model.Symbol
	require.NoError(t, db.Where("kind = ?", model.KindAPIEndpoint).First(&endpointRow).Error)
	assert.Equal(t, "GET user/action/list", endpointRow.QualifiedName)

	var handlerEdgeCount int64
	require.NoError(t, db.Model(&model.Reference{}).Where("kind = ? AND context = ?", model.RefImplements, "api_handler").Count(&handlerEdgeCount).Error)
	assert.Equal(t, int64(1), handlerEdgeCount)
}

func TestEnumerateSkipsIgnoredAndOversizedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "lib.php"), []byte("<?php\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.php"), []byte("<?php\n// padding\n"), 0o644))

	db, err := store.Connect(filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	w := store.NewWriter(db, 10)

	p := pipeline.New(pipeline.Options{
		Root:           root,
		IgnorePatterns: []string{"vendor/**"},
		MaxFileSize:    4,
		Driver:         ast.NewDriver(ast.DefaultGrammars()...),
		Collectors: map[string]collector.Collector{
			ast.LangPHP: phpfamily.New(),
		},
		Log: zerolog.Nop(),
	})

	stats, err := p.Index(context.Background(), w, db)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesScanned) // vendor/lib.php never enumerated at all
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 1, stats.SkipReasons["max_file_size"])
}
