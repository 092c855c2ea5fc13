package vision

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var tableMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// IsMarkdownTable reports whether the string parses to at least one GFM
// table node. Used to reject model output that claims to be a table
// reconstruction but is really prose or broken pipe syntax.
func IsMarkdownTable(s string) bool {
	source := []byte(s)
	doc := tableMarkdown.Parser().Parse(text.NewReader(source))

	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*extast.Table); ok {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}
