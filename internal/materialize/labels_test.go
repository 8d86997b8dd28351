package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph/indexer/internal/materialize"
	"github.com/codegraph/indexer/internal/store/model"
)

func TestDefaultLabelMapCoversEachRequiredLanguage(t *testing.T) {
	labels := materialize.DefaultLabelMap()

	assert.Equal(t, "PhpClass", labels.Label("php", model.KindClass))
	assert.Equal(t, "TsFunction", labels.Label("typescript", model.KindFunction))
	assert.Equal(t, "JsMethod", labels.Label("javascript", model.KindMethod))
	assert.Equal(t, "File", labels.Label("php", model.KindFile))
	assert.Equal(t, "ApiEndpoint", labels.Label("meta", model.KindAPIEndpoint))
}

func TestUnknownLanguageKindFallsBackToGenericSymbolLabel(t *testing.T) {
	labels := materialize.DefaultLabelMap()
	assert.Equal(t, "Symbol", labels.Label("ruby", "macro"))
}
