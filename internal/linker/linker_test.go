package linker_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/indexer/internal/linker"
	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// TestCrossLanguageAPILink implements scenario 3 of spec §8: a backend
// handler at GET /User/action/list and a frontend call to
// ajax.get('/user/action/list') must resolve to the same endpoint
// symbol despite differing case.
func TestCrossLanguageAPILink(t *testing.T) {
	db, err := store.Connect(t.TempDir()+"/cache.db", false)
	require.NoError(t, err)
	w := store.NewWriter(db, 10)

	routes := []linker.HandlerRoute{
		{SymbolID: "UserController.actionList", Language: "php", Method: "GET", Path: "/User/action/list"},
	}
	callSites := []linker.CallSite{
		{SourceID: "frontend.load", Language: "javascript", Method: "get", Path: "/user/action/list", Line: 10, Column: 4},
	}

	l := linker.New(zerolog.Nop())
	stats, err := l.Link(w, routes, callSites)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Endpoints)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Unmatched)

	var endpointCount int64
	require.NoError(t, db.Model(&model.Symbol{}).Where("kind = ?", model.KindAPIEndpoint).Count(&endpointCount).Error)
	assert.Equal(t, int64(1), endpointCount)

	var apiCallCount int64
	require.NoError(t, db.Model(&model.Reference{}).Where("kind = ?", model.RefAPICalls).Count(&apiCallCount).Error)
	assert.Equal(t, int64(1), apiCallCount)
}

func TestPlaceholderNormalizationUnifiesDifferingSyntax(t *testing.T) {
	db, err := store.Connect(t.TempDir()+"/cache.db", false)
	require.NoError(t, err)
	w := store.NewWriter(db, 10)

	routes := []linker.HandlerRoute{
		{SymbolID: "Handler.show", Language: "php", Method: "GET", Path: "/user/{id}"},
	}
	callSites := []linker.CallSite{
		{SourceID: "client.fetchUser", Language: "javascript", Method: "GET", Path: "/user/:id"},
	}

	l := linker.New(zerolog.Nop())
	stats, err := l.Link(w, routes, callSites)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Endpoints, "differing placeholder syntax must collapse to one endpoint symbol")
	assert.Equal(t, 1, stats.Matched)
}
