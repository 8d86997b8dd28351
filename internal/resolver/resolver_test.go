package resolver_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/resolver"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

func newTestWriter(t *testing.T) (*store.Writer, *gorm.DB) {
	t.Helper()
	db, err := store.Connect(t.TempDir()+"/cache.db", false)
	require.NoError(t, err)
	return store.NewWriter(db, 10), db
}

// TestMethodOverride implements scenario 1 of spec §8: Base.save and
// Child.save, Child extends Base, expect an overrides edge and no
// external placeholders.
func TestMethodOverride(t *testing.T) {
	w, db := newTestWriter(t)
	baseID, childID := "base-id", "child-id"
	baseSaveID, childSaveID := "base-save-id", "child-save-id"

	files := []resolver.PendingFile{
		{
			Path: "Base.php", Language: "php",
			Result: &collector.Result{
				Symbols: []collector.RawSymbol{
					{Kind: model.KindClass, Name: "Base", QualifiedName: "Base"},
					{Kind: model.KindMethod, Name: "save", QualifiedName: "Base::save", ParentQN: "Base"},
				},
			},
			SymbolIDs: []string{baseID, baseSaveID},
		},
		{
			Path: "Child.php", Language: "php",
			Result: &collector.Result{
				Symbols: []collector.RawSymbol{
					{Kind: model.KindClass, Name: "Child", QualifiedName: "Child"},
					{Kind: model.KindMethod, Name: "save", QualifiedName: "Child::save", ParentQN: "Child"},
				},
				References: []collector.RawReference{
					{FromQN: "Child", Kind: model.RefExtends, TargetRaw: "Base"},
				},
			},
			SymbolIDs: []string{childID, childSaveID},
		},
	}

	engine := resolver.NewEngine(zerolog.Nop())
	stats, err := engine.Resolve(context.Background(), w, files)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.UnresolvedByKind[model.RefExtends], "extends must resolve internally, no external placeholder")
	assert.Equal(t, 1, stats.ResolvedByStrategy["overrides_derivation"], "exactly one overrides edge derived")

	var overrideCount int64
	require.NoError(t, db.Model(&model.Reference{}).
		Where("kind = ? AND source_id = ? AND target_id = ?", model.RefOverrides, childSaveID, baseSaveID).
		Count(&overrideCount).Error)
	assert.Equal(t, int64(1), overrideCount)
}

// TestUnresolvedExternalImport implements scenario 5 of spec §8.
func TestUnresolvedExternalImport(t *testing.T) {
	w, _ := newTestWriter(t)
	files := []resolver.PendingFile{
		{
			Path: "Consumer.php", Language: "php", Namespace: "App",
			Result: &collector.Result{
				Symbols: []collector.RawSymbol{
					{Kind: model.KindClass, Name: "Consumer", QualifiedName: "App\\Consumer"},
				},
				References: []collector.RawReference{
					{FromQN: "<file>", Kind: model.RefImports, TargetRaw: `ThirdParty\Lib\Client`},
				},
			},
			SymbolIDs: []string{"consumer-id"},
		},
	}

	engine := resolver.NewEngine(zerolog.Nop())
	stats, err := engine.Resolve(context.Background(), w, files)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.UnresolvedByKind[model.RefImports])
}
