package render

import (
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// Engine turns parsed articles into published ones.
type Engine struct {
	md Markdown
}

// NewEngine creates an Engine; a nil md selects Goldmark.
func NewEngine(md Markdown) *Engine {
	if md == nil {
		md = NewGoldmark()
	}
	return &Engine{md: md}
}

// RenderArticle rewrites wikilinks against r, converts the result to HTML and
// returns the published article with every cross link it saw. p is not
// modified.
func (e *Engine) RenderArticle(p models.ParsedArticle, r index.Resolver) (models.Article, []models.CrossLink, error) {
	linked, links := index.Link(r, p.RawContent)
	markup, err := e.md.Convert([]byte(linked))
	if err != nil {
		return models.Article{}, links, err
	}
	return models.Publish(p, string(markup)), links, nil
}
