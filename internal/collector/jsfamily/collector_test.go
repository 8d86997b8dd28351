package jsfamily_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector/jsfamily"
	"github.com/codegraph/indexer/internal/store/model"
)

func parseTS(t *testing.T, src string) *ast.Tree {
	t.Helper()
	driver := ast.NewDriver(ast.DefaultGrammars()...)
	tree, err := driver.Parse(context.Background(), ast.LangTypeScript, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func parseJS(t *testing.T, src string) *ast.Tree {
	t.Helper()
	driver := ast.NewDriver(ast.DefaultGrammars()...)
	tree, err := driver.Parse(context.Background(), ast.LangJavaScript, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func TestInterfaceImplementedByClass(t *testing.T) {
	src := `
interface Shape {
    area(): number;
}
class Circle implements Shape {
    area(): number { return 0; }
}
`
	tree := parseTS(t, src)
	result, err := jsfamily.NewTypeScript().Collect(tree, "shapes.ts")
	require.NoError(t, err)

	var implementsTarget string
	for _, r := range result.References {
		if r.Kind == model.RefImplements {
			implementsTarget = r.TargetRaw
		}
	}
	assert.Equal(t, "Shape", implementsTarget)

	var interfaceMethod, classMethod bool
	for _, sym := range result.Symbols {
		if sym.Kind == model.KindMethod && sym.Name == "area" {
			if sym.ParentQN == "shapes.Shape" {
				interfaceMethod = true
			}
			if sym.ParentQN == "shapes.Circle" {
				classMethod = true
			}
		}
	}
	assert.True(t, interfaceMethod)
	assert.True(t, classMethod)
}

func TestImportBindingsAndRequire(t *testing.T) {
	src := `
import { helper, other as renamed } from "./utils";
const fs = require("fs");
`
	tree := parseJS(t, src)
	result, err := jsfamily.NewJavaScript().Collect(tree, "main.js")
	require.NoError(t, err)

	require.Len(t, result.Imports, 2)
	assert.Equal(t, "helper", result.Imports[0].LocalName)
	assert.Equal(t, "renamed", result.Imports[1].LocalName)

	var requireFound bool
	for _, r := range result.References {
		if r.Context == "require" && r.TargetRaw == "fs" {
			requireFound = true
		}
	}
	assert.True(t, requireFound)
}

func TestJSXCapitalizedTagIsReferenceLowercaseIsNot(t *testing.T) {
	src := `
function App() {
    return <div><Widget prop="x" /></div>;
}
`
	tree := parseJS(t, src)
	result, err := jsfamily.NewJavaScript().Collect(tree, "app.jsx")
	require.NoError(t, err)

	var widgetFound, divFound bool
	for _, r := range result.References {
		if r.Context != "jsx" {
			continue
		}
		if r.TargetRaw == "Widget" {
			widgetFound = true
		}
		if r.TargetRaw == "div" {
			divFound = true
		}
	}
	assert.True(t, widgetFound, "capitalized JSX tags are component references")
	assert.False(t, divFound, "lowercase JSX tags are host elements, not references")
}

func TestAxiosCallSiteEmitsAPICallSite(t *testing.T) {
	src := `
async function load() {
    return axios.get("/api/v1/users");
}
`
	tree := parseJS(t, src)
	result, err := jsfamily.NewJavaScript().Collect(tree, "client.js")
	require.NoError(t, err)

	var found bool
	for _, r := range result.References {
		if r.Context == "api_call_site" {
			found = true
			assert.Equal(t, "GET", r.HTTPMethod)
			assert.Equal(t, "/api/v1/users", r.HTTPPath)
		}
	}
	assert.True(t, found)
}
