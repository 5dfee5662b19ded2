package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/archive"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tags"
)

// Publisher writes rendered pages into a storage provider using the site
// layout. Every method is a single logical write so callers can wrap each in
// their own retry.
type Publisher struct {
	pages    *Pages
	store    storage.Provider
	homeSize int
}

// NewPublisher creates a Publisher. homeSize <= 0 means DefaultHomeSize.
func NewPublisher(pages *Pages, store storage.Provider, homeSize int) *Publisher {
	if homeSize <= 0 {
		homeSize = DefaultHomeSize
	}
	return &Publisher{pages: pages, store: store, homeSize: homeSize}
}

// Store returns the underlying provider.
func (p *Publisher) Store() storage.Provider { return p.store }

// WriteArticle writes the article page.
func (p *Publisher) WriteArticle(a models.Article) error {
	page, err := p.pages.Post(a)
	if err != nil {
		return err
	}
	return p.store.Write(PostPage(a.Slug), page, ContentType(PageFile))
}

// WriteMeta writes the metadata record the site is rebuilt from.
func (p *Publisher) WriteMeta(m models.Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("render: encode meta %s: %w", m.Slug, err)
	}
	return p.store.Write(PostMeta(m.Slug), data, ContentType(MetaFile))
}

// WriteAsset copies a post asset to its published location.
func (p *Publisher) WriteAsset(postSlug, rel string, data []byte) error {
	dst := PostAsset(postSlug, rel)
	return p.store.Write(dst, data, ContentType(dst))
}

// WriteStatic copies a site-wide static file.
func (p *Publisher) WriteStatic(rel string, data []byte) error {
	dst := StaticAsset(rel)
	return p.store.Write(dst, data, ContentType(dst))
}

// RemovePost deletes everything published under a post and returns the
// removed paths.
func (p *Publisher) RemovePost(postSlug string) ([]string, error) {
	return storage.DeletePrefix(p.store, storage.DirPrefix(PostDir(postSlug)))
}

// LoadMetas reads every published meta record, newest first. Unreadable
// records are returned as an error.
func (p *Publisher) LoadMetas() ([]models.Meta, error) {
	objs, err := p.store.List(PostsDir + "/")
	if err != nil {
		return nil, fmt.Errorf("render: list posts: %w", err)
	}
	var metas []models.Meta
	for _, o := range objs {
		if !strings.HasSuffix(o.Path, "/"+MetaFile) {
			continue
		}
		// Only direct children: posts/<slug>/meta.json.
		if strings.Count(o.Path, "/") != 2 {
			continue
		}
		data, err := p.store.Read(o.Path)
		if err != nil {
			return nil, fmt.Errorf("render: read %s: %w", o.Path, err)
		}
		var m models.Meta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("render: decode %s: %w", o.Path, err)
		}
		metas = append(metas, m)
	}
	models.SortByDateDesc(metas)
	return metas, nil
}

// WriteTagPages writes one page per tag plus the tag listing, and removes
// pages of tags no article uses any more. It returns the number of tag pages
// written, listing excluded.
func (p *Publisher) WriteTagPages(metas []models.Meta) (int, error) {
	sorted := append([]models.Meta(nil), metas...)
	models.SortByDateDesc(sorted)

	bySlug := make(map[string]models.Meta, len(sorted))
	for _, m := range sorted {
		bySlug[m.Slug] = m
	}

	idx := tags.Build(sorted)
	all := idx.All()
	live := make(map[string]bool, len(all))
	written := 0
	for _, t := range all {
		articles := make([]models.Meta, 0, len(t.Articles))
		for _, s := range t.Articles {
			if m, ok := bySlug[s]; ok {
				articles = append(articles, m)
			}
		}
		page, err := p.pages.Tag(t, articles)
		if err != nil {
			return written, err
		}
		if err := p.store.Write(TagPage(t.Slug), page, ContentType(PageFile)); err != nil {
			return written, err
		}
		live[t.Slug] = true
		written++
	}

	listing, err := p.pages.TagList(all)
	if err != nil {
		return written, err
	}
	if err := p.store.Write(TagListPage(), listing, ContentType(PageFile)); err != nil {
		return written, err
	}

	if err := p.pruneTags(live); err != nil {
		return written, err
	}
	return written, nil
}

func (p *Publisher) pruneTags(live map[string]bool) error {
	objs, err := p.store.List(TagsDir + "/")
	if err != nil {
		return fmt.Errorf("render: list tags: %w", err)
	}
	for _, o := range objs {
		rest := strings.TrimPrefix(o.Path, TagsDir+"/")
		tagSlug, _, nested := strings.Cut(rest, "/")
		if !nested || live[tagSlug] {
			continue
		}
		if err := p.store.Delete(o.Path); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return nil
}

// WriteHome writes the landing page from metas ordered newest first.
func (p *Publisher) WriteHome(metas []models.Meta) error {
	recent, more := Recent(metas, p.homeSize)
	page, err := p.pages.Home(recent, more)
	if err != nil {
		return err
	}
	return p.store.Write(HomePage(), page, ContentType(PageFile))
}

// WriteArchive writes the month-grouped archive page.
func (p *Publisher) WriteArchive(metas []models.Meta) error {
	page, err := p.pages.Archive(archive.Build(metas))
	if err != nil {
		return err
	}
	return p.store.Write(ArchivePage(), page, ContentType(PageFile))
}
