// Package parser extracts front matter, wikilinks and an excerpt from a
// markdown document and produces the parsed article stage.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/slug"
)

// ExcerptLength is the rune budget of a derived excerpt.
const ExcerptLength = 200

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// ValidationError reports a structurally invalid document.
type ValidationError struct {
	Path   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parser: %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("parser: %s: %s %s", e.Path, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return apperr.ErrInvalidDocument }

// stringList accepts either a YAML sequence or a single scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(unmarshal func(any) error) error {
	var many []string
	if err := unmarshal(&many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := unmarshal(&one); err != nil {
		return err
	}
	*l = []string{one}
	return nil
}

type frontMatter struct {
	Title   string     `yaml:"title" json:"title"`
	Date    any        `yaml:"date" json:"date"`
	Slug    string     `yaml:"slug" json:"slug"`
	Tags    stringList `yaml:"tags" json:"tags"`
	Aliases stringList `yaml:"aliases" json:"aliases"`
	Draft   bool       `yaml:"draft" json:"draft"`
	Excerpt string     `yaml:"excerpt" json:"excerpt"`
}

func (fm *frontMatter) Validate() error {
	return validation.ValidateStruct(fm,
		validation.Field(&fm.Title, validation.Required),
		validation.Field(&fm.Date, validation.Required),
	)
}

// Parser turns raw index documents into parsed articles.
type Parser struct{}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// Parse reads the front matter and body of data. dirSlug is the name of the
// directory holding the document; it becomes the slug unless the front matter
// sets one. Structural problems are returned as *ValidationError.
func (p *Parser) Parse(sourcePath, dirSlug string, data []byte, updatedAt time.Time) (models.ParsedArticle, error) {
	var fm frontMatter
	body, err := frontmatter.MustParse(bytes.NewReader(data), &fm)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return models.ParsedArticle{}, &ValidationError{Path: sourcePath, Reason: "missing front matter block"}
		}
		return models.ParsedArticle{}, &ValidationError{Path: sourcePath, Reason: "malformed front matter: " + err.Error()}
	}

	fm.Title = strings.TrimSpace(fm.Title)
	if err := fm.Validate(); err != nil {
		return models.ParsedArticle{}, fieldError(sourcePath, err)
	}

	date, err := parseDate(fm.Date)
	if err != nil {
		return models.ParsedArticle{}, &ValidationError{Path: sourcePath, Field: "date", Reason: err.Error()}
	}

	s := slug.Normalize(fm.Slug)
	if s == "" {
		s = slug.Normalize(dirSlug)
	}
	if s == "" {
		return models.ParsedArticle{}, &ValidationError{Path: sourcePath, Field: "slug", Reason: "cannot be empty"}
	}

	raw := string(body)
	excerpt := strings.TrimSpace(fm.Excerpt)
	if excerpt == "" {
		excerpt = deriveExcerpt(raw)
	}

	return models.ParsedArticle{
		Meta: models.Meta{
			Slug:       s,
			Title:      fm.Title,
			Date:       date,
			Tags:       cleanList(fm.Tags),
			Aliases:    cleanList(fm.Aliases),
			Draft:      fm.Draft,
			Excerpt:    excerpt,
			SourcePath: sourcePath,
			UpdatedAt:  updatedAt,
		},
		RawContent: raw,
		Links:      ExtractLinks(raw),
	}, nil
}

func fieldError(path string, err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, name := range []string{"title", "date"} {
			if fe, ok := errs[name]; ok {
				return &ValidationError{Path: path, Field: name, Reason: fe.Error()}
			}
		}
	}
	return &ValidationError{Path: path, Reason: err.Error()}
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("malformed date %q", s)
	default:
		return time.Time{}, fmt.Errorf("malformed date %v", v)
	}
}

// cleanList trims entries and drops empties and slug-equal duplicates,
// keeping the first spelling.
func cleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := slug.Normalize(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ExtractLinks returns deduplicated wikilink targets, dropping [[Target|Label]]
// labels.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _ := SplitWikilink(m[1])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// SplitWikilink splits the inner text of a wikilink into target and label.
// The label defaults to the target.
func SplitWikilink(inner string) (target, label string) {
	target = inner
	if i := strings.Index(inner, "|"); i >= 0 {
		target = inner[:i]
		label = strings.TrimSpace(inner[i+1:])
	}
	target = strings.TrimSpace(target)
	if label == "" {
		label = target
	}
	return target, label
}

// deriveExcerpt returns the first prose paragraph of body, flattened and cut
// at a word boundary.
func deriveExcerpt(body string) string {
	var para []string
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "![") || strings.HasPrefix(trimmed, "<") {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	text := strings.Join(para, " ")
	text = wikilinkRe.ReplaceAllStringFunc(text, func(m string) string {
		_, label := SplitWikilink(m[2 : len(m)-2])
		return label
	})
	return truncate(text, ExcerptLength)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
