// Package models defines the domain types for ansuz.
package models

import (
	"slices"
	"time"
)

// Meta is the metadata shared by both article stages.
type Meta struct {
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Date       time.Time `json:"date"`
	Tags       []string  `json:"tags"`
	Aliases    []string  `json:"aliases,omitempty"`
	Draft      bool      `json:"draft"`
	Excerpt    string    `json:"excerpt,omitempty"`
	SourcePath string    `json:"source_path"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a copy of m that shares no slices with it.
func (m Meta) Clone() Meta {
	m.Tags = slices.Clone(m.Tags)
	m.Aliases = slices.Clone(m.Aliases)
	return m
}

// ParsedArticle is a document after front-matter extraction. It holds the raw
// markdown body and never any rendered markup.
type ParsedArticle struct {
	Meta
	RawContent string   `json:"-"`
	Links      []string `json:"links,omitempty"` // wikilink targets found in RawContent
}

// Article is a published document. It holds rendered markup and never the
// raw markdown body.
type Article struct {
	Meta
	Markup string `json:"-"`
}

// Publish builds the published stage of p from externally rendered markup.
// p is left untouched.
func Publish(p ParsedArticle, markup string) Article {
	return Article{
		Meta:   p.Meta.Clone(),
		Markup: markup,
	}
}

// MetasOf returns the metadata of every article, in order.
func MetasOf(articles []Article) []Meta {
	out := make([]Meta, len(articles))
	for i, a := range articles {
		out[i] = a.Meta
	}
	return out
}

// SortByDateDesc orders metas newest first; equal dates keep slug order.
func SortByDateDesc(metas []Meta) {
	slices.SortStableFunc(metas, func(a, b Meta) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		switch {
		case a.Slug < b.Slug:
			return -1
		case a.Slug > b.Slug:
			return 1
		}
		return 0
	})
}
