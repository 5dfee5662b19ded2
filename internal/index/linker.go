package index

import (
	"html"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// PostURL is the public URL of an article page.
func PostURL(s string) string {
	return "/posts/" + s + "/"
}

// Link rewrites every [[Target]] or [[Target|Label]] in markdown into a
// markdown link to the resolved article. Unresolved references become a
// broken-link span. Every reference is reported in document order.
func Link(r Resolver, markdown string) (string, []models.CrossLink) {
	var links []models.CrossLink
	out := wikilinkRe.ReplaceAllStringFunc(markdown, func(m string) string {
		target, label := parser.SplitWikilink(m[2 : len(m)-2])
		if target == "" {
			return m
		}
		link := r.Resolve(target)
		links = append(links, link)
		if !link.Resolved() {
			return `<span class="broken-link">` + html.EscapeString(label) + `</span>`
		}
		return "[" + escapeLabel(label) + "](" + PostURL(link.TargetSlug) + ")"
	})
	return out, links
}

func escapeLabel(s string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// Unresolved filters links down to those without a target.
func Unresolved(links []models.CrossLink) []models.CrossLink {
	var out []models.CrossLink
	for _, l := range links {
		if !l.Resolved() {
			out = append(out, l)
		}
	}
	return out
}
