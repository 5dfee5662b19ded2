package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown converts a markdown body to HTML.
type Markdown interface {
	Convert(src []byte) ([]byte, error)
}

// Goldmark is the default Markdown converter. It is stateless after
// construction and safe for concurrent use.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark builds a converter with GFM, linkify, task lists, footnotes and
// generated heading ids. Raw HTML passes through, which the broken-link
// markers emitted by the linker rely on.
func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Linkify,
				extension.TaskList,
				extension.Footnote,
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Convert renders src to HTML.
func (g *Goldmark) Convert(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render: markdown: %w", err)
	}
	return buf.Bytes(), nil
}
