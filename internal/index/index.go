// Package index builds the slug, title and alias lookup maps for a set of
// articles and resolves inter-document references against them.
package index

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/slug"
)

// ArticleIndex is an immutable lookup structure over one article collection.
// A changed collection always needs a new Build.
type ArticleIndex struct {
	bySlug  map[string]models.Meta
	byTitle map[string]string
	byAlias map[string]string
	order   []string
}

// Resolver resolves reference text to an article slug. Consumers depend on
// this rather than *ArticleIndex.
type Resolver interface {
	Resolve(query string) models.CrossLink
}

var _ Resolver = (*ArticleIndex)(nil)

// Build indexes metas in input order. Titles and aliases map to the first
// article that claims them; later collisions never overwrite an earlier
// mapping. Duplicate slugs are not detected here; see DetectDuplicates.
func Build(metas []models.Meta) *ArticleIndex {
	idx := &ArticleIndex{
		bySlug:  make(map[string]models.Meta, len(metas)),
		byTitle: make(map[string]string, len(metas)),
		byAlias: make(map[string]string),
		order:   make([]string, 0, len(metas)),
	}
	for _, m := range metas {
		if _, seen := idx.bySlug[m.Slug]; !seen {
			idx.order = append(idx.order, m.Slug)
		}
		idx.bySlug[m.Slug] = m.Clone()

		if key := slug.Normalize(m.Title); key != "" {
			if _, taken := idx.byTitle[key]; !taken {
				idx.byTitle[key] = m.Slug
			}
		}
		for _, alias := range m.Aliases {
			key := slug.Normalize(alias)
			if key == "" {
				continue
			}
			if _, taken := idx.byAlias[key]; !taken {
				idx.byAlias[key] = m.Slug
			}
		}
	}
	return idx
}

// Resolve looks query up by exact slug, then title, then alias. The first tier
// that matches wins and is reported in ResolvedBy.
func (idx *ArticleIndex) Resolve(query string) models.CrossLink {
	n := slug.Normalize(query)
	link := models.CrossLink{OriginalText: query, NormalizedText: n}
	if n == "" {
		return link
	}
	if _, ok := idx.bySlug[n]; ok {
		link.TargetSlug, link.ResolvedBy = n, models.ResolvedSlug
		return link
	}
	if s, ok := idx.byTitle[n]; ok {
		link.TargetSlug, link.ResolvedBy = s, models.ResolvedTitle
		return link
	}
	if s, ok := idx.byAlias[n]; ok {
		link.TargetSlug, link.ResolvedBy = s, models.ResolvedAlias
		return link
	}
	return link
}

// Get returns the metadata indexed under slug.
func (idx *ArticleIndex) Get(s string) (models.Meta, bool) {
	m, ok := idx.bySlug[s]
	if !ok {
		return models.Meta{}, false
	}
	return m.Clone(), true
}

// Len returns the number of distinct slugs.
func (idx *ArticleIndex) Len() int { return len(idx.order) }

// Slugs returns the indexed slugs in first-seen order.
func (idx *ArticleIndex) Slugs() []string {
	return append([]string(nil), idx.order...)
}
