package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var errEmptyDocument = errors.New("generated document is empty")

var markdownParser = goldmark.New().Parser()

// checkMarkdown rejects output that does not parse into a sectioned document.
func checkMarkdown(content string, minSections int) error {
	if strings.TrimSpace(content) == "" {
		return errEmptyDocument
	}
	src := []byte(content)
	doc := markdownParser.Parse(text.NewReader(src))

	headings, blocks := 0, 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			headings++
		case ast.KindParagraph, ast.KindList, ast.KindFencedCodeBlock, ast.KindCodeBlock:
			blocks++
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return fmt.Errorf("inspect generated markdown: %w", err)
	}
	if headings < minSections {
		return fmt.Errorf("malformed output: expected at least %d headings, found %d", minSections, headings)
	}
	if blocks == 0 {
		return fmt.Errorf("malformed output: document has headings but no body")
	}
	return nil
}
