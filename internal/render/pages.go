package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/starford/ansuz/internal/models"
)

// Site carries site-wide values available to every page.
type Site struct {
	Title   string
	BaseURL string
}

// DefaultHomeSize is how many articles the home page lists.
const DefaultHomeSize = 10

// Pages renders whole HTML pages.
type Pages struct {
	cache *TemplateCache
	site  Site
}

// NewPages creates a page renderer; a nil cache gets a fresh one.
func NewPages(cache *TemplateCache, site Site) *Pages {
	if cache == nil {
		cache = NewTemplateCache()
	}
	if site.Title == "" {
		site.Title = "ansuz"
	}
	return &Pages{cache: cache, site: site}
}

// Cache returns the template cache in use.
func (p *Pages) Cache() *TemplateCache { return p.cache }

// Post renders an article page.
func (p *Pages) Post(a models.Article) ([]byte, error) {
	return p.execute(TemplatePost, map[string]any{
		"Article": a,
		"Markup":  template.HTML(a.Markup), // converter output
	})
}

// Tag renders the page of one tag. articles should already be ordered.
func (p *Pages) Tag(tag models.TagWithStats, articles []models.Meta) ([]byte, error) {
	return p.execute(TemplateTag, map[string]any{
		"Tag":      tag,
		"Articles": articles,
	})
}

// TagList renders the listing of every tag.
func (p *Pages) TagList(all []models.TagWithStats) ([]byte, error) {
	return p.execute(TemplateTags, map[string]any{"Tags": all})
}

// Home renders the landing page.
func (p *Pages) Home(recent []models.Meta, hasMore bool) ([]byte, error) {
	return p.execute(TemplateHome, map[string]any{
		"Articles": recent,
		"HasMore":  hasMore,
	})
}

// Archive renders the month-grouped archive.
func (p *Pages) Archive(groups []models.ArchiveGroup) ([]byte, error) {
	return p.execute(TemplateArchive, map[string]any{"Groups": groups})
}

func (p *Pages) execute(name string, data map[string]any) ([]byte, error) {
	t, err := p.cache.Get(name)
	if err != nil {
		return nil, err
	}
	data["Site"] = p.site
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render: execute %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Recent returns the first n of metas (already newest first) and whether
// more exist. n <= 0 means DefaultHomeSize.
func Recent(metas []models.Meta, n int) ([]models.Meta, bool) {
	if n <= 0 {
		n = DefaultHomeSize
	}
	if len(metas) <= n {
		return metas, false
	}
	return metas[:n], true
}
