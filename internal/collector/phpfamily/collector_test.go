package phpfamily_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector/phpfamily"
	"github.com/codegraph/indexer/internal/store/model"
)

func parsePHP(t *testing.T, src string) *ast.Tree {
	t.Helper()
	driver := ast.NewDriver(ast.DefaultGrammars()...)
	tree, err := driver.Parse(context.Background(), ast.LangPHP, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func TestClassExtendsAndImplements(t *testing.T) {
	src := `<?php
namespace App\Models;
interface Shape {}
abstract class Base implements Shape {}
class Circle extends Base implements Shape {
    public function area(): float { return 0.0; }
}
`
	tree := parsePHP(t, src)
	result, err := phpfamily.New().Collect(tree, "app/Models/Circle.php")
	require.NoError(t, err)

	var extendsTarget, implementsTarget string
	for _, r := range result.References {
		if r.Kind == model.RefExtends {
			extendsTarget = r.TargetRaw
		}
		if r.Kind == model.RefImplements {
			implementsTarget = r.TargetRaw
		}
	}
	assert.Equal(t, "Base", extendsTarget)
	assert.Equal(t, "Shape", implementsTarget)

	var foundMethod bool
	for _, sym := range result.Symbols {
		if sym.Kind == model.KindMethod && sym.Name == "area" {
			foundMethod = true
			require.Len(t, sym.DeclaredTypes, 1)
			assert.Equal(t, "float", sym.DeclaredTypes[0])
		}
	}
	assert.True(t, foundMethod)
}

func TestMethodOverrideCandidateEmitsExtends(t *testing.T) {
	src := `<?php
class Animal { public function speak() { return "..."; } }
class Dog extends Animal { public function speak() { return "Woof"; } }
`
	tree := parsePHP(t, src)
	result, err := phpfamily.New().Collect(tree, "Animal.php")
	require.NoError(t, err)

	var speakMethods int
	for _, sym := range result.Symbols {
		if sym.Kind == model.KindMethod && sym.Name == "speak" {
			speakMethods++
		}
	}
	assert.Equal(t, 2, speakMethods, "both Animal::speak and Dog::speak collected as raw symbols")
}

func TestUseStatementEmitsImport(t *testing.T) {
	src := `<?php
namespace App\Controllers;
use App\Models\Circle;
use App\Services\Logger as Log;
`
	tree := parsePHP(t, src)
	result, err := phpfamily.New().Collect(tree, "app/Controllers/Home.php")
	require.NoError(t, err)

	require.Len(t, result.Imports, 2)
	assert.Equal(t, `App\Models\Circle`, result.Imports[0].TargetRaw)
	assert.Equal(t, "Log", result.Imports[1].LocalName)
}

func TestFreeFunctionCallEmitsCallsReference(t *testing.T) {
	src := `<?php
function wrapper() {
    return strlen("abc");
}
`
	tree := parsePHP(t, src)
	result, err := phpfamily.New().Collect(tree, "wrapper.php")
	require.NoError(t, err)

	var found bool
	for _, r := range result.References {
		if r.Kind == model.RefCalls && r.TargetRaw == "strlen" {
			found = true
		}
	}
	assert.True(t, found, "free function call strlen() collected as a calls reference")
}

func TestThrowEmitsThrowsReference(t *testing.T) {
	src := `<?php
function risky() {
    throw new \RuntimeException("boom");
}
`
	tree := parsePHP(t, src)
	result, err := phpfamily.New().Collect(tree, "risky.php")
	require.NoError(t, err)

	var found bool
	for _, r := range result.References {
		if r.Kind == model.RefThrows {
			found = true
			assert.Contains(t, r.TargetRaw, "RuntimeException")
		}
	}
	assert.True(t, found)
}
