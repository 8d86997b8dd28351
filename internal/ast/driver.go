// Package ast wraps tree-sitter parsing behind a small, typed interface
// so collectors never touch raw source bytes directly (spec §4.1). It is
// grounded on providers/base.Provider's parser lifecycle in the teacher
// repository, generalized from "one parser per provider instance" to a
// pool because Pass 1 parses many files concurrently (spec §5).
package ast

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar exposes a tree-sitter language plus the identifier collectors
// key their node-type tables on.
type Grammar struct {
	Language string
	Get      func() *sitter.Language
}

// Driver parses files into Trees for a fixed set of grammars, one parser
// pool per grammar.
type Driver struct {
	grammars map[string]*sitter.Language
	pools    map[string]*sync.Pool
}

// NewDriver builds a driver over the given grammars.
func NewDriver(grammars ...Grammar) *Driver {
	d := &Driver{
		grammars: make(map[string]*sitter.Language, len(grammars)),
		pools:    make(map[string]*sync.Pool, len(grammars)),
	}
	for _, g := range grammars {
		lang := g.Get()
		d.grammars[g.Language] = lang
		langCopy := lang
		d.pools[g.Language] = &sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(langCopy)
				return p
			},
		}
	}
	return d
}

// Languages lists the grammars this driver supports.
func (d *Driver) Languages() []string {
	out := make([]string, 0, len(d.grammars))
	for lang := range d.grammars {
		out = append(out, lang)
	}
	return out
}

// Parse parses src as language and returns a Tree. Partial/erroneous
// parses still return a Tree (with Errors populated) rather than an
// error — only a genuinely unsupported language is an error, matching
// the "never fail the file" rule of spec §4.1.
func (d *Driver) Parse(ctx context.Context, language string, src []byte) (*Tree, error) {
	pool, ok := d.pools[language]
	if !ok {
		return nil, fmt.Errorf("ast: no grammar registered for language %q", language)
	}
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return nil, fmt.Errorf("ast: parse %s: %w", language, err)
	}

	t := &Tree{tree: tree, src: src, language: language}
	t.collectErrors(tree.RootNode())
	return t, nil
}
