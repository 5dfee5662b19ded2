package models

// Tag identifies a tag by slug; Name keeps the first-seen display casing.
type Tag struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// TagWithStats is a derived tag view. It is never persisted.
type TagWithStats struct {
	Tag
	Count    int      `json:"count"`
	Articles []string `json:"articles"` // article slugs in input order
}

// ArchiveGroup holds the articles of one UTC calendar month, newest first.
type ArchiveGroup struct {
	YearMonth   string `json:"year_month"` // YYYY-MM
	DisplayName string `json:"display_name"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Count       int    `json:"count"`
	Articles    []Meta `json:"articles"`
}

// ResolvedBy names the lookup tier that resolved a cross link.
type ResolvedBy string

const (
	ResolvedNone  ResolvedBy = ""
	ResolvedSlug  ResolvedBy = "slug"
	ResolvedTitle ResolvedBy = "title"
	ResolvedAlias ResolvedBy = "alias"
)

// CrossLink is the outcome of resolving one inter-document reference.
type CrossLink struct {
	OriginalText   string     `json:"original_text"`
	NormalizedText string     `json:"normalized_text"`
	TargetSlug     string     `json:"target_slug,omitempty"`
	ResolvedBy     ResolvedBy `json:"resolved_by,omitempty"`
}

// Resolved reports whether the link found a target.
func (c CrossLink) Resolved() bool {
	return c.TargetSlug != ""
}
