package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language tags used throughout the pipeline.
const (
	LangPHP        = "php"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangPython     = "python"
)

// DefaultGrammars is the grammar set required by spec §2/§4.2: the
// PHP-family and the JS/TS-family. Python is carried as bonus coverage
// of a grammar the teacher already links (providers/python/config.go)
// but that no required family names — see SPEC_FULL.md §4.1.
func DefaultGrammars() []Grammar {
	return []Grammar{
		{Language: LangPHP, Get: func() *sitter.Language { return php.GetLanguage() }},
		{Language: LangJavaScript, Get: func() *sitter.Language { return javascript.GetLanguage() }},
		{Language: LangTypeScript, Get: func() *sitter.Language { return typescript.GetLanguage() }},
		{Language: LangPython, Get: func() *sitter.Language { return python.GetLanguage() }},
	}
}
