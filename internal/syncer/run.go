package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cdn"
	"github.com/starford/ansuz/internal/fetcher"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/retry"
	"github.com/starford/ansuz/internal/slug"
)

// runState is the mutable bookkeeping of one sync.
type runState struct {
	log           *slog.Logger
	repo          fetcher.Repo
	result        *models.SyncResult
	metas         map[string]models.Meta // published articles by slug
	invalidations pathSet
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, req models.SyncRequest, repo fetcher.Repo) (*models.SyncResult, error) {
	published, err := o.pub.LoadMetas()
	if err != nil {
		return nil, fmt.Errorf("syncer: load published articles: %w", err)
	}

	rs := &runState{
		log:  log,
		repo: repo,
		result: &models.SyncResult{
			SyncID:           req.ID,
			ArticlesRendered: []string{},
			ArticlesFailed:   []models.ArticleFailure{},
			ArticlesDeleted:  []string{},
		},
		metas: make(map[string]models.Meta, len(published)),
	}
	for _, m := range published {
		rs.metas[m.Slug] = m
	}

	var dirs []string
	switch req.Type {
	case models.SyncFull:
		dirs, err = o.source.ListPostSlugs(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("syncer: list documents: %w", err)
		}
		o.removeMissing(rs, dirs)
	case models.SyncIncremental:
		var changes models.Changes
		if req.Changes != nil {
			changes = *req.Changes
		}
		deleted := o.applyRemovals(rs, changes.Removed)
		dirs = affectedDirs(o.source.ContentRoot(), deleted, changes.Added, changes.Modified)
	default:
		return nil, fmt.Errorf("syncer: unknown sync type %q: %w", req.Type, apperr.ErrConflict)
	}

	for _, dir := range dirs {
		postSlug, err := o.processArticle(ctx, rs, dir)
		switch {
		case errors.Is(err, errDraft):
			continue
		case err != nil:
			rs.log.Warn("sync: document failed", slog.String("dir", dir), slog.String("error", err.Error()))
			rs.result.ArticlesFailed = append(rs.result.ArticlesFailed, models.ArticleFailure{Slug: o.slugForDir(rs, dir), Error: err.Error()})
		default:
			rs.result.ArticlesRendered = append(rs.result.ArticlesRendered, postSlug)
			rs.invalidations.add(render.PostInvalidation(postSlug))
		}
	}

	if len(rs.result.ArticlesRendered) > 0 {
		o.regenerateIndexes(ctx, rs)
	}
	o.invalidate(ctx, rs)

	rs.result.Success = len(rs.result.ArticlesFailed) == 0
	return rs.result, nil
}

// applyRemovals deletes published output for removed source paths. Removing
// a post's index document unpublishes the whole post; removing an asset
// deletes that asset only. It returns the directories that were unpublished.
func (o *Orchestrator) applyRemovals(rs *runState, removed []string) map[string]bool {
	gone := make(map[string]bool)
	root := o.source.ContentRoot()
	for _, p := range removed {
		ref, ok := splitSourcePath(root, p)
		if !ok {
			rs.log.Debug("sync: ignoring removal outside content root", slog.String("path", p))
			continue
		}
		postSlug := o.slugForDir(rs, ref.Dir)

		if ref.Rel == render.SourceFile {
			gone[ref.Dir] = true
			o.unpublish(rs, postSlug)
			continue
		}
		dst := render.PostAsset(postSlug, ref.Rel)
		if err := o.pub.Store().Delete(dst); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			rs.log.Warn("sync: delete asset", slog.String("path", dst), slog.String("error", err.Error()))
			continue
		}
		rs.invalidations.add(render.PostInvalidation(postSlug))
	}
	return gone
}

// removeMissing unpublishes posts whose source directory is gone. Only used
// by full syncs, which see the whole source.
func (o *Orchestrator) removeMissing(rs *runState, dirs []string) {
	live := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		live[d] = true
	}
	root := o.source.ContentRoot()
	for s, m := range rs.metas {
		ref, ok := splitSourcePath(root, m.SourcePath)
		if ok && live[ref.Dir] {
			continue
		}
		if !ok && live[s] {
			continue
		}
		o.unpublish(rs, s)
	}
}

func (o *Orchestrator) unpublish(rs *runState, postSlug string) {
	removed, err := o.pub.RemovePost(postSlug)
	if err != nil {
		rs.log.Warn("sync: unpublish", slog.String("slug", postSlug), slog.String("error", err.Error()))
	}
	delete(rs.metas, postSlug)
	if len(removed) > 0 {
		rs.result.ArticlesDeleted = append(rs.result.ArticlesDeleted, postSlug)
		rs.invalidations.add(render.PostInvalidation(postSlug))
	}
}

// slugForDir finds the published slug of a source directory, which differs
// from the directory name when the front matter sets one.
func (o *Orchestrator) slugForDir(rs *runState, dir string) string {
	root := o.source.ContentRoot()
	for s, m := range rs.metas {
		if ref, ok := splitSourcePath(root, m.SourcePath); ok && ref.Dir == dir {
			return s
		}
	}
	return slug.Normalize(dir)
}

// processArticle fetches, renders and publishes one document with its
// assets. It returns the published slug.
func (o *Orchestrator) processArticle(ctx context.Context, rs *runState, dir string) (string, error) {
	files, err := o.source.FetchPostFiles(ctx, rs.repo, dir)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	prefix := path.Join(o.source.ContentRoot(), dir) + "/"
	var (
		indexFile *fetcher.File
		assets    []fetcher.File
		total     int64
	)
	for i := range files {
		f := files[i]
		total += int64(len(f.Data))
		if f.Path == prefix+render.SourceFile {
			indexFile = &files[i]
			continue
		}
		assets = append(assets, f)
	}
	if indexFile == nil {
		return "", fmt.Errorf("no %s in %s: %w", render.SourceFile, dir, apperr.ErrNotFound)
	}
	if total > o.cfg.MaxDocumentSize {
		rs.log.Warn("sync: document exceeds size budget",
			slog.String("dir", dir),
			slog.Int64("bytes", total),
			slog.Int64("budget", o.cfg.MaxDocumentSize))
	}

	parsed, err := o.parser.Parse(indexFile.Path, dir, indexFile.Data, o.now().UTC())
	if err != nil {
		return "", err
	}
	if parsed.Draft {
		rs.log.Info("sync: skipping draft", slog.String("slug", parsed.Slug))
		if _, ok := rs.metas[parsed.Slug]; ok {
			o.unpublish(rs, parsed.Slug)
		}
		return "", errDraft
	}

	if s := o.slugForDir(rs, dir); s != parsed.Slug {
		if _, ok := rs.metas[s]; ok {
			rs.log.Info("sync: slug changed", slog.String("from", s), slog.String("to", parsed.Slug))
			o.unpublish(rs, s)
		}
	}

	metas := make([]models.Meta, 0, len(rs.metas)+1)
	metas = append(metas, parsed.Meta)
	for s, m := range rs.metas {
		if s != parsed.Slug {
			metas = append(metas, m)
		}
	}
	models.SortByDateDesc(metas)

	article, links, err := o.engine.RenderArticle(parsed, index.Build(metas))
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if broken := index.Unresolved(links); len(broken) > 0 {
		rs.log.Warn("sync: unresolved links", slog.String("slug", article.Slug), slog.Int("count", len(broken)))
	}

	if err := o.withRetry(ctx, rs, "publish", func() error { return o.pub.WriteArticle(article) }); err != nil {
		return "", fmt.Errorf("publish page: %w", err)
	}
	if err := o.withRetry(ctx, rs, "publish", func() error { return o.pub.WriteMeta(article.Meta) }); err != nil {
		return "", fmt.Errorf("publish meta: %w", err)
	}
	rs.metas[article.Slug] = article.Meta

	for _, a := range assets {
		rel := strings.TrimPrefix(a.Path, prefix)
		if int64(len(a.Data)) > o.cfg.MaxFileSize {
			rs.log.Warn("sync: asset rejected, too large",
				slog.String("path", a.Path),
				slog.Int("bytes", len(a.Data)),
				slog.Int64("limit", o.cfg.MaxFileSize))
			rs.assetFailed(article.Slug, rel, fmt.Errorf("%d bytes exceeds limit %d", len(a.Data), o.cfg.MaxFileSize))
			continue
		}
		if err := o.withRetry(ctx, rs, "asset", func() error { return o.pub.WriteAsset(article.Slug, rel, a.Data) }); err != nil {
			rs.log.Warn("sync: asset not copied", slog.String("path", a.Path), slog.String("error", err.Error()))
			rs.assetFailed(article.Slug, rel, err)
		}
	}
	return article.Slug, nil
}

func (rs *runState) assetFailed(postSlug, rel string, err error) {
	rs.result.AssetsFailed = append(rs.result.AssetsFailed, models.AssetFailure{Slug: postSlug, Path: rel, Error: err.Error()})
}

// regenerateIndexes rebuilds tag, home and archive pages from every
// published article. Failures are logged and leave the counters unset.
func (o *Orchestrator) regenerateIndexes(ctx context.Context, rs *runState) {
	metas, err := o.pub.LoadMetas()
	if err != nil {
		rs.log.Error("sync: reload articles", slog.String("error", err.Error()))
		return
	}

	var tagPages int
	err = o.withRetry(ctx, rs, "tags", func() error {
		n, err := o.pub.WriteTagPages(metas)
		tagPages = n
		return err
	})
	if err != nil {
		rs.log.Error("sync: tag pages", slog.String("error", err.Error()))
		return
	}
	rs.result.TagPagesGenerated = tagPages
	rs.invalidations.add(render.TagsInvalidation)

	err = o.withRetry(ctx, rs, "index", func() error {
		if err := o.pub.WriteHome(metas); err != nil {
			return err
		}
		return o.pub.WriteArchive(metas)
	})
	if err != nil {
		rs.log.Error("sync: index pages", slog.String("error", err.Error()))
		return
	}
	rs.result.IndexPagesGenerated = true
	rs.invalidations.add(render.HomeInvalidation)
	rs.invalidations.add(render.ArchiveInvalidation)
}

func (o *Orchestrator) invalidate(ctx context.Context, rs *runState) {
	paths := rs.invalidations.list()
	if len(paths) == 0 {
		return
	}
	err := o.cdn.Invalidate(ctx, o.cfg.DistributionID, paths, cdn.NewCallerReference())
	o.metrics.IncInvalidation(err == nil)
	if err != nil {
		rs.log.Warn("sync: cache invalidation failed", slog.String("error", err.Error()))
		return
	}
	rs.result.CacheInvalidated = true
}

func (o *Orchestrator) withRetry(ctx context.Context, rs *runState, op string, fn func() error) error {
	h := retry.New(o.cfg.Retry,
		retry.WithSleep(o.sleep),
		retry.WithObserver(func(attempt int, err error) {
			o.metrics.IncRetry(op)
			rs.log.Warn("sync: write failed",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}),
	)
	res := h.Execute(ctx, func(context.Context, int) error { return fn() })
	if !res.Success {
		o.metrics.IncRetryExhausted(op)
		return res.Err()
	}
	return nil
}
