package fetcher

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Repo identifies a branch or commit of a hosted repository.
type Repo struct {
	Owner string
	Name  string
	Ref   string // branch, tag or commit; empty means the default branch
}

// ParseRepo accepts "owner/name" or "owner/name@ref".
func ParseRepo(s string) (Repo, error) {
	var r Repo
	rest := strings.TrimSpace(s)
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		r.Ref = rest[i+1:]
		rest = rest[:i]
	}
	owner, name, ok := strings.Cut(rest, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("fetcher: invalid repository %q, want owner/name[@ref]: %w", s, apperr.ErrInvalidInput)
	}
	r.Owner, r.Name = owner, name
	return r, nil
}

// WithRef returns a copy of r pinned to ref when ref is non-empty.
func (r Repo) WithRef(ref string) Repo {
	if ref != "" {
		r.Ref = ref
	}
	return r
}

func (r Repo) String() string {
	if r.Ref == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + "@" + r.Ref
}
