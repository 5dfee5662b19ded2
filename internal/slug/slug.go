// Package slug normalizes free text into URL-safe identifiers. Every identity
// comparison in the site (article slugs, titles used as keys, tag names and
// aliases) goes through Normalize.
package slug

import (
	"regexp"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`[\s_-]+`)
	invalidRe   = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRunRe = regexp.MustCompile(`-{2,}`)
)

// Normalize lowercases s, collapses whitespace, underscore and dash runs into a
// single hyphen, drops everything outside [a-z0-9-] and trims edge hyphens.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	out := strings.ToLower(s)
	out = separatorRe.ReplaceAllString(out, "-")
	out = invalidRe.ReplaceAllString(out, "")
	out = hyphenRunRe.ReplaceAllString(out, "-")
	return strings.Trim(out, "-")
}

// Equal reports whether a and b normalize to the same slug.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
