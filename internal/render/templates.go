package render

import (
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/slug"
	"github.com/starford/ansuz/internal/tags"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page template names.
const (
	TemplatePost    = "post"
	TemplateTag     = "tag"
	TemplateTags    = "tags"
	TemplateHome    = "home"
	TemplateArchive = "archive"
)

var funcs = template.FuncMap{
	"date":    func(t time.Time) string { return t.UTC().Format("January 2, 2006") },
	"isoDate": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"postURL": index.PostURL,
	"tagURL":  func(name string) string { return tags.URL(slug.Normalize(name)) },
}

// TemplateCache parses page templates on first use and keeps them until
// Clear. Each cache is independent; nothing is shared between instances.
type TemplateCache struct {
	mu   sync.Mutex
	sets map[string]*template.Template
}

// NewTemplateCache creates an empty cache.
func NewTemplateCache() *TemplateCache {
	return &TemplateCache{sets: make(map[string]*template.Template)}
}

// Get returns the template set for a page, parsing it if needed.
func (c *TemplateCache) Get(name string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.sets[name]; ok {
		return t, nil
	}
	t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
		"templates/layout.html",
		"templates/list.html",
		"templates/"+name+".html",
	)
	if err != nil {
		return nil, fmt.Errorf("render: parse template %q: %w", name, err)
	}
	c.sets[name] = t
	return t, nil
}

// Len returns the number of parsed sets.
func (c *TemplateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// Clear drops every parsed set.
func (c *TemplateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.sets)
}
