// Package syncer keeps the published site in step with the hosted source.
//
// Unlike a full build, a sync keeps going when one document fails: the
// failure is recorded and the remaining documents are still published.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cdn"
	"github.com/starford/ansuz/internal/fetcher"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/retry"
	"github.com/starford/ansuz/internal/tracker"
)

const (
	// DefaultMaxFileSize rejects any single asset above it.
	DefaultMaxFileSize = 10 << 20
	// DefaultMaxDocumentSize is logged when one document's files exceed it.
	DefaultMaxDocumentSize = 25 << 20
)

// Source is where documents come from.
type Source interface {
	ContentRoot() string
	ListPostSlugs(ctx context.Context, repo fetcher.Repo) ([]string, error)
	FetchPostFiles(ctx context.Context, repo fetcher.Repo, slug string) ([]fetcher.File, error)
}

// EventPublisher receives sync lifecycle events.
type EventPublisher interface {
	PublishSyncEvent(kind, syncID string)
}

// Config holds orchestrator settings.
type Config struct {
	Repo            fetcher.Repo
	DistributionID  string
	MaxFileSize     int64
	MaxDocumentSize int64
	Retry           retry.Policy
}

// Orchestrator runs syncs. At most one sync runs at a time per Orchestrator.
type Orchestrator struct {
	cfg      Config
	source   Source
	pub      *render.Publisher
	tracker  *tracker.Tracker
	engine   *render.Engine
	parser   *parser.Parser
	notifier notify.Notifier
	cdn      cdn.Invalidator
	events   EventPublisher
	metrics  metrics.Recorder
	logger   *slog.Logger
	sleep    retry.SleepFunc
	now      func() time.Time
	newID    func() string

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where run outcomes are reported.
func WithNotifier(n notify.Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

// WithInvalidator sets the CDN invalidator.
func WithInvalidator(i cdn.Invalidator) Option { return func(o *Orchestrator) { o.cdn = i } }

// WithEvents sets the lifecycle event publisher.
func WithEvents(e EventPublisher) Option { return func(o *Orchestrator) { o.events = e } }

// WithEngine sets the article render engine.
func WithEngine(e *render.Engine) Option { return func(o *Orchestrator) { o.engine = e } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithSleep replaces the retry backoff sleep, mainly for tests.
func WithSleep(fn retry.SleepFunc) Option { return func(o *Orchestrator) { o.sleep = fn } }

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithIDs sets the generator for sync ids.
func WithIDs(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = metrics.OrNoop(m) }
}

// New creates an Orchestrator.
func New(cfg Config, source Source, pub *render.Publisher, tr *tracker.Tracker, opts ...Option) *Orchestrator {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = DefaultMaxDocumentSize
	}
	if cfg.Retry.Attempts() <= 1 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	o := &Orchestrator{
		cfg:      cfg,
		source:   source,
		pub:      pub,
		tracker:  tr,
		engine:   render.NewEngine(nil),
		parser:   parser.New(),
		notifier: notify.NewLog(nil),
		cdn:      cdn.Noop{},
		metrics:  metrics.NoopRecorder{},
		logger:   slog.Default(),
		sleep:    retry.Sleep,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsSyncInProgress reports whether a sync is running.
func (o *Orchestrator) IsSyncInProgress() bool {
	return o.running.Load()
}

// Tracker returns the sync tracker.
func (o *Orchestrator) Tracker() *tracker.Tracker { return o.tracker }

// Sync runs one synchronization. It returns apperr.ErrSyncInProgress when
// another sync holds the guard. A run that aborts before producing a result
// returns its error; per-document failures are reported in the result.
func (o *Orchestrator) Sync(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error) {
	if req.Type == "" {
		req.Type = models.SyncIncremental
	}
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.IncSyncOutcome(string(req.Type), metrics.OutcomeRejected)
		return nil, apperr.ErrSyncInProgress
	}
	defer o.running.Store(false)

	if req.ID == "" {
		req.ID = o.newID()
	}
	log := o.logger.With(slog.String("sync_id", req.ID), slog.String("type", string(req.Type)))

	stored := req
	if _, err := o.tracker.Start(req.ID, req.CommitHash, &stored); err != nil {
		o.metrics.IncSyncOutcome(string(req.Type), metrics.OutcomeFailed)
		o.send(ctx, log, failureMessage(req, err))
		log.Error("sync: record start", slog.String("error", err.Error()))
		return nil, err
	}
	o.publishEvent(notify.EventSyncStarted, req.ID)

	start := o.now()
	var res *models.SyncResult
	repo, runErr := o.resolveRepo(req.RepositoryRef)
	if runErr == nil {
		log.Info("sync: started", slog.String("repo", repo.String()), slog.String("commit", req.CommitHash))
		res, runErr = o.run(ctx, log, req, repo)
	}
	elapsed := o.now().Sub(start)
	o.metrics.ObserveSyncDuration(string(req.Type), elapsed)

	if runErr != nil {
		if _, err := o.tracker.Fail(req.ID, runErr); err != nil {
			log.Error("sync: record failure", slog.String("error", err.Error()))
		}
		o.metrics.IncSyncOutcome(string(req.Type), metrics.OutcomeFailed)
		o.metrics.SetConsecutiveFailures(o.tracker.ConsecutiveFailures())
		o.publishEvent(notify.EventSyncFailed, req.ID)
		o.send(ctx, log, failureMessage(req, runErr))
		log.Error("sync: aborted", slog.String("error", runErr.Error()))
		return nil, runErr
	}

	res.DurationMs = elapsed.Milliseconds()
	if _, err := o.tracker.Complete(req.ID, res); err != nil {
		log.Error("sync: record result", slog.String("error", err.Error()))
	}

	outcome := metrics.OutcomeSuccess
	event := notify.EventSyncCompleted
	if !res.Success {
		outcome = metrics.OutcomeFailed
		event = notify.EventSyncFailed
	}
	o.metrics.IncSyncOutcome(string(req.Type), outcome)
	o.metrics.AddArticles(metrics.ArticleRendered, len(res.ArticlesRendered))
	o.metrics.AddArticles(metrics.ArticleFailed, len(res.ArticlesFailed))
	o.metrics.AddArticles(metrics.ArticleDeleted, len(res.ArticlesDeleted))
	o.metrics.SetConsecutiveFailures(o.tracker.ConsecutiveFailures())
	o.publishEvent(event, req.ID)
	o.send(ctx, log, summaryMessage(req, res))

	log.Info("sync: finished",
		slog.Bool("success", res.Success),
		slog.Int("rendered", len(res.ArticlesRendered)),
		slog.Int("failed", len(res.ArticlesFailed)),
		slog.Int("deleted", len(res.ArticlesDeleted)),
		slog.Int64("duration_ms", res.DurationMs))
	return res, nil
}

// PrepareRetry builds a fresh request repeating a failed sync. Syncs that
// are not failed, or have no stored request, give apperr.ErrConflict.
func (o *Orchestrator) PrepareRetry(id string) (models.SyncRequest, error) {
	st, err := o.tracker.Get(id)
	if err != nil {
		return models.SyncRequest{}, err
	}
	if st.Status != models.SyncFailed {
		return models.SyncRequest{}, fmt.Errorf("syncer: sync %s is %s: %w", id, st.Status, apperr.ErrConflict)
	}
	if st.Request == nil {
		return models.SyncRequest{}, fmt.Errorf("syncer: sync %s has no stored request: %w", id, apperr.ErrConflict)
	}
	req := *st.Request
	req.ID = o.newID()
	if req.Changes != nil {
		c := *req.Changes
		req.Changes = &c
	}
	return req, nil
}

// Retry re-runs the stored request of a failed sync under a new id.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*models.SyncResult, error) {
	req, err := o.PrepareRetry(id)
	if err != nil {
		return nil, err
	}
	return o.Sync(ctx, req)
}

// resolveRepo accepts "owner/name[@ref]" or a bare ref on the configured
// repository.
func (o *Orchestrator) resolveRepo(ref string) (fetcher.Repo, error) {
	if ref == "" {
		return o.cfg.Repo, nil
	}
	if strings.Contains(ref, "/") {
		return fetcher.ParseRepo(ref)
	}
	return o.cfg.Repo.WithRef(ref), nil
}

func (o *Orchestrator) publishEvent(kind, id string) {
	if o.events != nil {
		o.events.PublishSyncEvent(kind, id)
	}
}

func (o *Orchestrator) send(ctx context.Context, log *slog.Logger, msg notify.Message) {
	if o.notifier == nil {
		return
	}
	msg.SentAt = o.now().UTC()
	if err := o.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		log.Warn("sync: notification failed", slog.String("error", err.Error()))
	}
}

func failureMessage(req models.SyncRequest, err error) notify.Message {
	return notify.Message{
		Subject:  fmt.Sprintf("Sync %s failed", req.ID),
		Body:     err.Error(),
		Severity: notify.SeverityError,
		Metadata: map[string]string{"syncId": req.ID, "type": string(req.Type)},
	}
}

func summaryMessage(req models.SyncRequest, res *models.SyncResult) notify.Message {
	severity := notify.SeverityInfo
	subject := fmt.Sprintf("Sync %s completed", res.SyncID)
	switch {
	case len(res.ArticlesFailed) > 0:
		severity = notify.SeverityWarning
		subject = fmt.Sprintf("Sync %s completed with %d failures", res.SyncID, len(res.ArticlesFailed))
	case len(res.AssetsFailed) > 0:
		severity = notify.SeverityWarning
		subject = fmt.Sprintf("Sync %s completed with %d skipped assets", res.SyncID, len(res.AssetsFailed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rendered %d, failed %d, deleted %d, tag pages %d",
		len(res.ArticlesRendered), len(res.ArticlesFailed), len(res.ArticlesDeleted), res.TagPagesGenerated)
	for _, f := range res.ArticlesFailed {
		fmt.Fprintf(&b, "\n%s: %s", f.Slug, f.Error)
	}
	for _, f := range res.AssetsFailed {
		fmt.Fprintf(&b, "\n%s/%s: %s", f.Slug, f.Path, f.Error)
	}

	return notify.Message{
		Subject:  subject,
		Body:     b.String(),
		Severity: severity,
		Metadata: map[string]string{
			"syncId": res.SyncID,
			"type":   string(req.Type),
			"commit": req.CommitHash,
		},
	}
}

// errDraft marks a document that was skipped because it is a draft.
var errDraft = errors.New("draft")
