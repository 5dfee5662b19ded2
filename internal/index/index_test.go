package index

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func meta(s, title string, aliases ...string) models.Meta {
	return models.Meta{Slug: s, Title: title, Aliases: aliases, SourcePath: "content/" + s + "/index.md"}
}

func TestResolve_SlugBeatsTitle(t *testing.T) {
	idx := Build([]models.Meta{
		meta("a", "First"),
		meta("b", "a"),
	})
	link := idx.Resolve("a")
	if link.TargetSlug != "a" || link.ResolvedBy != models.ResolvedSlug {
		t.Errorf("resolve(a) = %+v, want slug match on a", link)
	}
}

func TestResolve_TitleBeatsAlias(t *testing.T) {
	idx := Build([]models.Meta{
		meta("one", "Shared Name"),
		meta("two", "Other", "shared name"),
	})
	link := idx.Resolve("Shared Name")
	if link.TargetSlug != "one" || link.ResolvedBy != models.ResolvedTitle {
		t.Errorf("got %+v, want title match on one", link)
	}
}

func TestResolve_FirstTitleWins(t *testing.T) {
	idx := Build([]models.Meta{
		meta("first", "Same Title"),
		meta("second", "Same Title"),
	})
	if got := idx.Resolve("same title").TargetSlug; got != "first" {
		t.Errorf("title resolved to %q, want first", got)
	}
}

func TestResolve_FirstAliasWins(t *testing.T) {
	idx := Build([]models.Meta{
		meta("new-home", "New Home", "Old Home"),
		meta("other", "Other", "old_home"),
	})
	link := idx.Resolve("OLD HOME")
	if link.TargetSlug != "new-home" || link.ResolvedBy != models.ResolvedAlias {
		t.Errorf("got %+v", link)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	idx := Build([]models.Meta{meta("a", "A")})
	for _, q := range []string{"", "   ", "!!!", "missing"} {
		link := idx.Resolve(q)
		if link.Resolved() || link.ResolvedBy != models.ResolvedNone {
			t.Errorf("resolve(%q) = %+v, want unresolved", q, link)
		}
		if link.OriginalText != q {
			t.Errorf("original text = %q", link.OriginalText)
		}
	}
}

func TestResolve_NormalizesQuery(t *testing.T) {
	idx := Build([]models.Meta{meta("hello-world", "Greeting")})
	link := idx.Resolve("Hello_World")
	if link.TargetSlug != "hello-world" || link.NormalizedText != "hello-world" {
		t.Errorf("got %+v", link)
	}
}

func TestBuild_NewInstanceEachTime(t *testing.T) {
	metas := []models.Meta{meta("a", "A")}
	first := Build(metas)
	second := Build(append(metas, meta("b", "B")))
	if first == second {
		t.Fatal("expected distinct instances")
	}
	if first.Len() != 1 || second.Len() != 2 {
		t.Errorf("len = %d/%d", first.Len(), second.Len())
	}
	if _, ok := first.Get("b"); ok {
		t.Error("earlier index sees later article")
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	metas := []models.Meta{{Slug: "a", Title: "A", Tags: []string{"go"}}}
	idx := Build(metas)
	metas[0].Tags[0] = "changed"
	m, _ := idx.Get("a")
	if m.Tags[0] != "go" {
		t.Errorf("index shares tag slice with input")
	}
}

func TestDetectDuplicates(t *testing.T) {
	candidates := []models.Meta{
		{Slug: "hello", SourcePath: "content/hello/index.md"},
		{Slug: "other", SourcePath: "content/other/index.md"},
		{Slug: "hello", SourcePath: "content/hello-again/index.md"},
	}
	errs := DetectDuplicates(candidates)
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	e := errs[0]
	if e.Code() != DuplicateSlugCode || e.Slug != "hello" {
		t.Errorf("error = %+v", e)
	}
	if len(e.Paths) != 2 || e.Paths[0] != "content/hello/index.md" || e.Paths[1] != "content/hello-again/index.md" {
		t.Errorf("paths = %v", e.Paths)
	}
	if !errors.Is(e, apperr.ErrDuplicateSlug) {
		t.Error("error does not wrap ErrDuplicateSlug")
	}
	if !strings.Contains(e.Error(), "duplicate_slug") {
		t.Errorf("message = %q", e.Error())
	}
}

func TestDetectDuplicates_SamePathIsNotDuplicate(t *testing.T) {
	candidates := []models.Meta{
		{Slug: "a", SourcePath: "content/a/index.md"},
		{Slug: "a", SourcePath: "content/a/index.md"},
	}
	if errs := DetectDuplicates(candidates); len(errs) != 0 {
		t.Errorf("errs = %v", errs)
	}
}
