// Package tags aggregates per-tag article counts and membership.
package tags

import (
	"sort"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/slug"
)

// URL is the public URL of a tag page.
func URL(tagSlug string) string {
	return "/tags/" + tagSlug + "/"
}

// Index is an immutable tag aggregate over one article collection.
type Index struct {
	tags  map[string]*models.TagWithStats
	order []string // first-seen tag slugs
}

// Build walks metas in order. A tag's display name is its first spelling;
// membership lists article slugs in input order.
func Build(metas []models.Meta) *Index {
	idx := &Index{tags: make(map[string]*models.TagWithStats)}
	for _, m := range metas {
		seenHere := make(map[string]struct{}, len(m.Tags))
		for _, name := range m.Tags {
			s := slug.Normalize(name)
			if s == "" {
				continue
			}
			if _, dup := seenHere[s]; dup {
				continue
			}
			seenHere[s] = struct{}{}

			t, ok := idx.tags[s]
			if !ok {
				t = &models.TagWithStats{Tag: models.Tag{Slug: s, Name: name}}
				idx.tags[s] = t
				idx.order = append(idx.order, s)
			}
			t.Count++
			t.Articles = append(t.Articles, m.Slug)
		}
	}
	return idx
}

// Count returns the number of distinct tags.
func (idx *Index) Count() int { return len(idx.order) }

// MostUsed returns the tag with the highest count. Ties go to the
// alphabetically first slug.
func (idx *Index) MostUsed() (models.TagWithStats, bool) {
	all := idx.All()
	if len(all) == 0 {
		return models.TagWithStats{}, false
	}
	return all[0], true
}

// All returns every tag, highest count first, ties by slug.
func (idx *Index) All() []models.TagWithStats {
	out := make([]models.TagWithStats, 0, len(idx.order))
	for _, s := range idx.order {
		out = append(out, clone(idx.tags[s]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// ByTag returns the article slugs carrying tagSlug, in input order.
func (idx *Index) ByTag(tagSlug string) []string {
	t, ok := idx.tags[slug.Normalize(tagSlug)]
	if !ok {
		return nil
	}
	return append([]string(nil), t.Articles...)
}

// BySlug returns the full stats of one tag.
func (idx *Index) BySlug(tagSlug string) (models.TagWithStats, bool) {
	t, ok := idx.tags[slug.Normalize(tagSlug)]
	if !ok {
		return models.TagWithStats{}, false
	}
	return clone(t), true
}

func clone(t *models.TagWithStats) models.TagWithStats {
	c := *t
	c.Articles = append([]string(nil), t.Articles...)
	return c
}
