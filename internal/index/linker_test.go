package index

import (
	"testing"

	"github.com/starford/ansuz/internal/models"
)

func TestLink_RewritesResolvedAndMarksBroken(t *testing.T) {
	idx := Build([]models.Meta{
		meta("go-generics", "Go Generics", "generics"),
	})
	in := "Read [[Go Generics]] or [[generics|the old post]]. Also [[Nowhere <x>]]."
	out, links := Link(idx, in)

	want := `Read [Go Generics](/posts/go-generics/) or [the old post](/posts/go-generics/). Also <span class="broken-link">Nowhere &lt;x&gt;</span>.`
	if out != want {
		t.Errorf("out =\n%s\nwant\n%s", out, want)
	}
	if len(links) != 3 {
		t.Fatalf("len(links) = %d", len(links))
	}
	if links[0].ResolvedBy != models.ResolvedTitle || links[1].ResolvedBy != models.ResolvedAlias {
		t.Errorf("tiers = %s, %s", links[0].ResolvedBy, links[1].ResolvedBy)
	}
	if broken := Unresolved(links); len(broken) != 1 || broken[0].OriginalText != "Nowhere <x>" {
		t.Errorf("unresolved = %+v", broken)
	}
}

func TestLink_LeavesEmptyTargetsAlone(t *testing.T) {
	out, links := Link(Build(nil), "x [[ ]] y")
	if out != "x [[ ]] y" || len(links) != 0 {
		t.Errorf("out = %q, links = %v", out, links)
	}
}
