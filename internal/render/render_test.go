package render

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func meta(slug, title, date string, tagNames ...string) models.Meta {
	return models.Meta{Slug: slug, Title: title, Date: day(date), Tags: tagNames}
}

func TestGoldmarkConvert(t *testing.T) {
	out, err := NewGoldmark().Convert([]byte("# Title\n\n- [x] done\n\nsee https://example.com\n"))
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	for _, want := range []string{`<h1 id="title">Title</h1>`, `type="checkbox"`, `<a href="https://example.com">`} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q:\n%s", want, html)
		}
	}
}

func TestRenderArticle(t *testing.T) {
	idx := index.Build([]models.Meta{meta("other", "Other Post", "2025-01-01")})
	p := models.ParsedArticle{
		Meta:       meta("hello", "Hello", "2025-02-01", "go"),
		RawContent: "Link to [[Other Post]] and [[Nowhere]].",
	}

	a, links, err := NewEngine(nil).RenderArticle(p, idx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(a.Markup, `<a href="/posts/other/">Other Post</a>`) {
		t.Errorf("resolved link missing:\n%s", a.Markup)
	}
	if !strings.Contains(a.Markup, `<span class="broken-link">Nowhere</span>`) {
		t.Errorf("broken link marker missing:\n%s", a.Markup)
	}
	if len(links) != 2 || !links[0].Resolved() || links[1].Resolved() {
		t.Errorf("links = %+v", links)
	}
	if a.Slug != "hello" || a.Title != "Hello" {
		t.Errorf("meta not carried: %+v", a.Meta)
	}
	if p.RawContent == "" {
		t.Error("parsed article was modified")
	}
}

type failingMarkdown struct{}

func (failingMarkdown) Convert([]byte) ([]byte, error) { return nil, errors.New("boom") }

func TestRenderArticleError(t *testing.T) {
	_, _, err := NewEngine(failingMarkdown{}).RenderArticle(models.ParsedArticle{}, index.Build(nil))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPaths(t *testing.T) {
	cases := map[string]string{
		PostPage("a"):                "posts/a/index.html",
		PostMeta("a"):                "posts/a/meta.json",
		PostAsset("a", "img/x.png"):  "posts/a/img/x.png",
		PostAsset("a", "../../etc"):  "posts/a/etc",
		TagPage("go"):                "tags/go/index.html",
		TagListPage():                "tags/index.html",
		ArchivePage():                "archive/index.html",
		HomePage():                   "index.html",
		StaticAsset("css/site.css"):  "static/css/site.css",
		PostInvalidation("a"):        "/posts/a/*",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	if ct := ContentType("index.html"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html: %q", ct)
	}
	if ct := ContentType("meta.json"); ct != "application/json" {
		t.Errorf("json: %q", ct)
	}
	if ct := ContentType("blob.unknownext"); ct != "application/octet-stream" {
		t.Errorf("unknown: %q", ct)
	}
}

func TestTemplateCache(t *testing.T) {
	c := NewTemplateCache()
	t1, err := c.Get(TemplatePost)
	if err != nil {
		t.Fatal(err)
	}
	t2, _ := c.Get(TemplatePost)
	if t1 != t2 {
		t.Error("expected cached template")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if _, err := c.Get("missing"); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestPagesPost(t *testing.T) {
	p := NewPages(nil, Site{Title: "Blog"})
	out, err := p.Post(models.Article{Meta: meta("a", "A <Title>", "2025-03-04", "Go Lang"), Markup: "<p>body</p>"})
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	for _, want := range []string{"<p>body</p>", "A &lt;Title&gt;", `href="/tags/go-lang/"`, "March 4, 2025", "<title>A &lt;Title&gt; · Blog</title>"} {
		if !strings.Contains(html, want) {
			t.Errorf("post page missing %q:\n%s", want, html)
		}
	}
}

func TestRecent(t *testing.T) {
	metas := make([]models.Meta, 12)
	got, more := Recent(metas, 0)
	if len(got) != DefaultHomeSize || !more {
		t.Errorf("len=%d more=%v", len(got), more)
	}
	got, more = Recent(metas[:3], 5)
	if len(got) != 3 || more {
		t.Errorf("len=%d more=%v", len(got), more)
	}
}

func TestPublisherIndexes(t *testing.T) {
	store := storage.NewMemory()
	pub := NewPublisher(NewPages(nil, Site{}), store, 1)

	// Stale tag page from an earlier build.
	if err := store.Write("tags/old/index.html", []byte("x"), "text/html"); err != nil {
		t.Fatal(err)
	}

	metas := []models.Meta{
		meta("a", "A", "2025-01-10", "go", "web"),
		meta("b", "B", "2025-02-10", "go"),
	}
	n, err := pub.WriteTagPages(metas)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("tag pages = %d, want 2", n)
	}
	for _, p := range []string{"tags/go/index.html", "tags/web/index.html", "tags/index.html"} {
		if ok, _ := store.Exists(p); !ok {
			t.Errorf("%s not written", p)
		}
	}
	if ok, _ := store.Exists("tags/old/index.html"); ok {
		t.Error("stale tag page not removed")
	}

	goPage, _ := store.Read("tags/go/index.html")
	if strings.Index(string(goPage), "/posts/b/") > strings.Index(string(goPage), "/posts/a/") {
		t.Error("tag page should list newest first")
	}

	models.SortByDateDesc(metas)
	if err := pub.WriteHome(metas); err != nil {
		t.Fatal(err)
	}
	home, _ := store.Read("index.html")
	if !strings.Contains(string(home), "More articles") {
		t.Error("home page should flag more articles")
	}
	if strings.Contains(string(home), "/posts/a/") {
		t.Error("home page should only list the newest article")
	}

	if err := pub.WriteArchive(metas); err != nil {
		t.Fatal(err)
	}
	arch, _ := store.Read("archive/index.html")
	if !strings.Contains(string(arch), "February 2025") || !strings.Contains(string(arch), "January 2025") {
		t.Errorf("archive missing months:\n%s", arch)
	}
}

func TestPublisherMetaRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	pub := NewPublisher(NewPages(nil, Site{}), store, 0)

	for _, m := range []models.Meta{meta("old", "Old", "2024-01-01"), meta("new", "New", "2025-01-01", "x")} {
		if err := pub.WriteMeta(m); err != nil {
			t.Fatal(err)
		}
		if err := pub.WriteArticle(models.Article{Meta: m, Markup: "<p/>"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := pub.WriteAsset("new", "img/cat.png", []byte{1}); err != nil {
		t.Fatal(err)
	}
	// Nested json files are assets, not records.
	if err := pub.WriteAsset("new", "data/meta.json", []byte("{")); err != nil {
		t.Fatal(err)
	}

	metas, err := pub.LoadMetas()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 || metas[0].Slug != "new" || metas[1].Slug != "old" {
		t.Fatalf("metas = %+v", metas)
	}

	raw, _ := store.Read("posts/new/meta.json")
	var decoded models.Meta
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.Title != "New" {
		t.Errorf("meta.json = %s (%v)", raw, err)
	}

	removed, err := pub.RemovePost("new")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 4 {
		t.Errorf("removed = %v", removed)
	}
	if ok, _ := store.Exists("posts/old/index.html"); !ok {
		t.Error("other post removed")
	}
}
