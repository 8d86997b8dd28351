package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := store.Fingerprint("php", model.KindClass, "App\\Base", "src/Base.php")
	b := store.Fingerprint("php", model.KindClass, "App\\Base", "src/Base.php")
	assert.Equal(t, a, b)

	c := store.Fingerprint("php", model.KindClass, "App\\Child", "src/Child.php")
	assert.NotEqual(t, a, c, "renaming the qualified name must change the ID")
}

func TestFingerprintUnrelatedFileUnaffected(t *testing.T) {
	before := store.Fingerprint("php", model.KindClass, "App\\Base", "src/Base.php")
	// Renaming an unrelated file never changes this symbol's ID.
	_ = store.Fingerprint("php", model.KindClass, "App\\Other", "src/Other.php")
	after := store.Fingerprint("php", model.KindClass, "App\\Base", "src/Base.php")
	assert.Equal(t, before, after)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Connect(t.TempDir()+"/cache.db", false)
	require.NoError(t, err)
	return db
}

func TestWriterIdempotentSymbolInsert(t *testing.T) {
	tdb := newTestDB(t)
	w := store.NewWriter(tdb, 10)

	sym := model.Symbol{
		ID:            store.Fingerprint("php", model.KindClass, "App\\Base", "src/Base.php"),
		Kind:          model.KindClass,
		Name:          "Base",
		QualifiedName: "App\\Base",
		Language:      "php",
		FilePath:      "src/Base.php",
	}

	require.NoError(t, w.PutSymbols([]model.Symbol{sym}))
	require.NoError(t, w.Flush())

	var count int64
	tdb.Model(&model.Symbol{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// Re-running the same symbol must insert zero additional rows.
	w2 := store.NewWriter(tdb, 10)
	require.NoError(t, w2.PutSymbols([]model.Symbol{sym}))
	require.NoError(t, w2.Flush())

	tdb.Model(&model.Symbol{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestWriterUniqueReferenceSite(t *testing.T) {
	tdb := newTestDB(t)
	w := store.NewWriter(tdb, 10)

	ref := model.Reference{SourceID: "s1", TargetID: "t1", Kind: model.RefCalls, Line: 10, Column: 4}
	require.NoError(t, w.PutReferences([]model.Reference{ref, ref}))
	require.NoError(t, w.Flush())

	var count int64
	tdb.Model(&model.Reference{}).Count(&count)
	assert.EqualValues(t, 1, count, "duplicate (source,target,kind,site) must collapse to one row")
}
