package index

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// DuplicateSlugCode is the machine-readable code of a duplicate slug error.
const DuplicateSlugCode = "duplicate_slug"

// DuplicateSlugError reports several candidate documents claiming one slug.
type DuplicateSlugError struct {
	Slug  string
	Paths []string // source paths in input order
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("%s: slug %q used by %s", DuplicateSlugCode, e.Slug, strings.Join(e.Paths, ", "))
}

// Code returns DuplicateSlugCode.
func (e *DuplicateSlugError) Code() string { return DuplicateSlugCode }

func (e *DuplicateSlugError) Unwrap() error { return apperr.ErrDuplicateSlug }

// DetectDuplicates compares candidates post hoc and returns one error per slug
// claimed by more than one distinct source path, ordered by first occurrence.
func DetectDuplicates(candidates []models.Meta) []*DuplicateSlugError {
	paths := make(map[string][]string)
	var order []string
	for _, c := range candidates {
		existing, seen := paths[c.Slug]
		if !seen {
			order = append(order, c.Slug)
		}
		if containsString(existing, c.SourcePath) {
			continue
		}
		paths[c.Slug] = append(existing, c.SourcePath)
	}

	var out []*DuplicateSlugError
	for _, s := range order {
		if len(paths[s]) > 1 {
			out = append(out, &DuplicateSlugError{Slug: s, Paths: paths[s]})
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
