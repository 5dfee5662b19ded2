package syncer

import (
	"strings"
)

// sourceRef is a source path split into its post directory and the path
// inside it.
type sourceRef struct {
	Dir string
	Rel string
}

// splitSourcePath maps "<root>/<dir>/<rel>" to its parts. Paths outside the
// content root, or naming the post directory itself, are rejected.
func splitSourcePath(root, p string) (sourceRef, bool) {
	p = strings.Trim(p, "/")
	if root != "" {
		if !strings.HasPrefix(p, root+"/") {
			return sourceRef{}, false
		}
		p = strings.TrimPrefix(p, root+"/")
	}
	dir, rel, ok := strings.Cut(p, "/")
	if !ok || dir == "" || rel == "" {
		return sourceRef{}, false
	}
	return sourceRef{Dir: dir, Rel: rel}, true
}

// affectedDirs returns the post directories touched by added and modified
// paths, deduplicated in first-seen order, leaving out those in skip.
func affectedDirs(root string, skip map[string]bool, lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, p := range list {
			ref, ok := splitSourcePath(root, p)
			if !ok || seen[ref.Dir] || skip[ref.Dir] {
				continue
			}
			seen[ref.Dir] = true
			out = append(out, ref.Dir)
		}
	}
	return out
}

// pathSet is an insertion-ordered set of strings.
type pathSet struct {
	seen  map[string]bool
	items []string
}

func (s *pathSet) add(p string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[p] {
		return
	}
	s.seen[p] = true
	s.items = append(s.items, p)
}

func (s *pathSet) list() []string { return s.items }
