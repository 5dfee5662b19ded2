// Package pipeline performs full site builds from a local content tree.
//
// A build is all or nothing: the first document that fails to render aborts
// the run before any tag, home or archive page is written.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/storage"
)

// State is the build lifecycle position.
type State string

const (
	StateInit      State = "INIT"
	StateReading   State = "READING"
	StateRendering State = "RENDERING"
	StateComplete  State = "COMPLETE"
	StateFailed    State = "FAILED"
)

// Renderer builds the whole site. A Renderer runs one build at a time.
type Renderer struct {
	source  storage.Provider
	static  storage.Provider
	pub     *render.Publisher
	engine  *render.Engine
	parser  *parser.Parser
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStatic sets the provider holding site-wide static files.
func WithStatic(p storage.Provider) Option {
	return func(r *Renderer) { r.static = p }
}

// WithEngine replaces the article engine.
func WithEngine(e *render.Engine) Option {
	return func(r *Renderer) { r.engine = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Renderer) { r.metrics = metrics.OrNoop(m) }
}

// WithClock replaces time.Now for durations.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// New creates a Renderer reading documents from source and writing through pub.
func New(source storage.Provider, pub *render.Publisher, opts ...Option) *Renderer {
	r := &Renderer{
		source:  source,
		pub:     pub,
		engine:  render.NewEngine(nil),
		parser:  parser.New(),
		logger:  slog.Default(),
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
		state:   StateInit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.logger.Debug("pipeline: state", slog.String("state", string(s)))
}

// Document is a discovered source directory.
type Document struct {
	Dir       string
	IndexPath string
	Assets    []string // paths of co-located non-index files
	UpdatedAt time.Time
}

// Discover lists the immediate subdirectories of the content root that hold
// an index document, in name order.
func (r *Renderer) Discover() ([]Document, error) {
	objs, err := r.source.List("")
	if err != nil {
		return nil, fmt.Errorf("pipeline: list content: %w", err)
	}

	byDir := make(map[string]*Document)
	for _, o := range objs {
		dir, rest, ok := strings.Cut(o.Path, "/")
		if !ok || dir == "" || strings.HasPrefix(dir, ".") {
			continue
		}
		d := byDir[dir]
		if d == nil {
			d = &Document{Dir: dir}
			byDir[dir] = d
		}
		if rest == render.SourceFile {
			d.IndexPath = o.Path
			d.UpdatedAt = o.UpdatedAt
			continue
		}
		d.Assets = append(d.Assets, o.Path)
	}

	docs := make([]Document, 0, len(byDir))
	for _, d := range byDir {
		if d.IndexPath == "" {
			r.logger.Debug("pipeline: directory without index document", slog.String("dir", d.Dir))
			continue
		}
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Dir < docs[j].Dir })
	return docs, nil
}

// Entry pairs a parsed article with the directory it came from.
type Entry struct {
	Doc     Document
	Article models.ParsedArticle
}

// ReadAll parses every document. Invalid and draft documents are skipped and
// counted; two documents claiming one slug fail the read. The result is
// ordered newest first.
func (r *Renderer) ReadAll(docs []Document) ([]Entry, int, error) {
	var (
		entries []Entry
		skipped int
	)
	for _, d := range docs {
		data, err := r.source.Read(d.IndexPath)
		if err != nil {
			return nil, skipped, fmt.Errorf("pipeline: read %s: %w", d.IndexPath, err)
		}
		p, err := r.parser.Parse(d.IndexPath, d.Dir, data, d.UpdatedAt)
		if err != nil {
			var ve *parser.ValidationError
			if !errors.As(err, &ve) {
				return nil, skipped, err
			}
			r.logger.Warn("pipeline: skipping invalid document",
				slog.String("path", d.IndexPath),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		if p.Draft {
			r.logger.Info("pipeline: skipping draft", slog.String("slug", p.Slug))
			skipped++
			continue
		}
		entries = append(entries, Entry{Doc: d, Article: p})
	}

	metas := make([]models.Meta, len(entries))
	for i, e := range entries {
		metas[i] = e.Article.Meta
	}
	if dups := index.DetectDuplicates(metas); len(dups) > 0 {
		errs := make([]error, len(dups))
		for i, d := range dups {
			errs[i] = d
		}
		return nil, skipped, errors.Join(errs...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Article, entries[j].Article
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Slug < b.Slug
	})
	return entries, skipped, nil
}

// RenderAll renders and publishes every entry with its assets. It stops at
// the first failure and returns how many posts and assets were written
// before it.
func (r *Renderer) RenderAll(ctx context.Context, entries []Entry) (posts, assets int, err error) {
	metas := make([]models.Meta, len(entries))
	for i, e := range entries {
		metas[i] = e.Article.Meta
	}
	idx := index.Build(metas)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return posts, assets, err
		}

		article, links, err := r.engine.RenderArticle(e.Article, idx)
		if err != nil {
			return posts, assets, fmt.Errorf("pipeline: render %s: %w", e.Article.Slug, err)
		}
		if broken := index.Unresolved(links); len(broken) > 0 {
			r.logger.Warn("pipeline: unresolved links",
				slog.String("slug", article.Slug),
				slog.Int("count", len(broken)))
		}
		if err := r.pub.WriteArticle(article); err != nil {
			return posts, assets, fmt.Errorf("pipeline: publish %s: %w", article.Slug, err)
		}
		if err := r.pub.WriteMeta(article.Meta); err != nil {
			return posts, assets, fmt.Errorf("pipeline: publish %s meta: %w", article.Slug, err)
		}
		posts++

		for _, a := range e.Doc.Assets {
			data, err := r.source.Read(a)
			if err != nil {
				return posts, assets, fmt.Errorf("pipeline: read asset %s: %w", a, err)
			}
			rel := strings.TrimPrefix(a, e.Doc.Dir+"/")
			if err := r.pub.WriteAsset(article.Slug, rel, data); err != nil {
				return posts, assets, fmt.Errorf("pipeline: copy asset %s: %w", a, err)
			}
			assets++
		}
	}
	return posts, assets, nil
}

// Run performs a complete build.
func (r *Renderer) Run(ctx context.Context) models.BuildSummary {
	start := r.now()
	summary := models.BuildSummary{}

	fail := func(err error) models.BuildSummary {
		r.setState(StateFailed)
		summary.Success = false
		summary.Errors = append(summary.Errors, err.Error())
		summary.Duration = r.now().Sub(start)
		r.metrics.ObserveBuildDuration(summary.Duration)
		r.metrics.IncBuildOutcome(metrics.OutcomeFailed)
		r.metrics.AddArticles(metrics.ArticleRendered, summary.PostsRendered)
		r.metrics.AddArticles(metrics.ArticleFailed, summary.PostsFailed)
		r.logger.Error("pipeline: build failed",
			slog.String("error", err.Error()),
			slog.Int("posts_rendered", summary.PostsRendered))
		return summary
	}

	r.setState(StateInit)
	r.setState(StateReading)
	docs, err := r.Discover()
	if err != nil {
		return fail(err)
	}
	entries, skipped, err := r.ReadAll(docs)
	summary.PostsSkipped = skipped
	if err != nil {
		return fail(err)
	}

	r.setState(StateRendering)
	posts, assets, err := r.RenderAll(ctx, entries)
	summary.PostsRendered = posts
	summary.AssetsUploaded = assets
	if err != nil {
		summary.PostsFailed = 1
		return fail(err)
	}

	metas := make([]models.Meta, len(entries))
	for i, e := range entries {
		metas[i] = e.Article.Meta
	}
	tagPages, err := r.pub.WriteTagPages(metas)
	summary.TagPagesGenerated = tagPages
	if err != nil {
		return fail(fmt.Errorf("pipeline: tag pages: %w", err))
	}
	if err := r.pub.WriteHome(metas); err != nil {
		return fail(fmt.Errorf("pipeline: home page: %w", err))
	}
	if err := r.pub.WriteArchive(metas); err != nil {
		return fail(fmt.Errorf("pipeline: archive: %w", err))
	}
	n, err := r.copyStatic()
	summary.AssetsUploaded += n
	if err != nil {
		return fail(fmt.Errorf("pipeline: static assets: %w", err))
	}

	r.setState(StateComplete)
	summary.Success = true
	summary.Duration = r.now().Sub(start)
	r.metrics.ObserveBuildDuration(summary.Duration)
	r.metrics.IncBuildOutcome(metrics.OutcomeSuccess)
	r.metrics.AddArticles(metrics.ArticleRendered, summary.PostsRendered)
	r.metrics.AddArticles(metrics.ArticleSkipped, summary.PostsSkipped)
	r.logger.Info("pipeline: build complete",
		slog.Int("posts_rendered", summary.PostsRendered),
		slog.Int("posts_skipped", summary.PostsSkipped),
		slog.Int("assets", summary.AssetsUploaded),
		slog.Int("tag_pages", summary.TagPagesGenerated),
		slog.Duration("duration", summary.Duration))
	return summary
}

func (r *Renderer) copyStatic() (int, error) {
	if r.static == nil {
		return 0, nil
	}
	objs, err := r.static.List("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range objs {
		data, err := r.static.Read(o.Path)
		if err != nil {
			return n, err
		}
		if err := r.pub.WriteStatic(o.Path, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
