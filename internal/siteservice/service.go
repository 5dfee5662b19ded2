// Package siteservice coordinates sync runs and site queries for the admin
// API and the MCP server.
package siteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/tags"
	"github.com/starford/ansuz/internal/tracker"
)

// Service wraps the orchestrator, its tracker and the published article set.
type Service struct {
	orch   *syncer.Orchestrator
	pub    *render.Publisher
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Service.
func New(orch *syncer.Orchestrator, pub *render.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orch: orch, pub: pub, logger: logger}
}

// Recent lists recent syncs, most recent first.
func (s *Service) Recent(limit int) ([]models.SyncStatus, error) {
	return s.orch.Tracker().Recent(limit)
}

// Status returns one sync's status or apperr.ErrNotFound.
func (s *Service) Status(id string) (models.SyncStatus, error) {
	return s.orch.Tracker().Get(id)
}

// Health reports the failure streak.
func (s *Service) Health() tracker.Health {
	return s.orch.Tracker().Health()
}

// InProgress reports whether a sync is running.
func (s *Service) InProgress() bool {
	return s.orch.IsSyncInProgress()
}

// Render runs a full sync and waits for it.
func (s *Service) Render(ctx context.Context, force bool, repository string) (*models.SyncResult, error) {
	if s.orch.IsSyncInProgress() {
		return nil, apperr.ErrSyncInProgress
	}
	return s.orch.Sync(ctx, models.SyncRequest{
		Type:          models.SyncFull,
		RepositoryRef: repository,
		Force:         force,
	})
}

// Retry starts a new sync repeating a failed one and returns its id without
// waiting for it.
func (s *Service) Retry(ctx context.Context, id string) (string, error) {
	if s.orch.IsSyncInProgress() {
		return "", apperr.ErrSyncInProgress
	}
	req, err := s.orch.PrepareRetry(id)
	if err != nil {
		return "", err
	}
	s.background(ctx, req)
	return req.ID, nil
}

// Trigger starts an incremental sync for changes and returns its id without
// waiting for it.
func (s *Service) Trigger(ctx context.Context, req models.SyncRequest) (string, error) {
	if s.orch.IsSyncInProgress() {
		return "", apperr.ErrSyncInProgress
	}
	if req.ID == "" {
		req.ID = newID()
	}
	s.background(ctx, req)
	return req.ID, nil
}

func (s *Service) background(ctx context.Context, req models.SyncRequest) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.orch.Sync(ctx, req); err != nil {
			s.logger.Warn("background sync did not complete",
				slog.String("sync_id", req.ID),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every background sync has returned.
func (s *Service) Wait() { s.wg.Wait() }

// ResolveLink resolves a wikilink target against the published articles.
func (s *Service) ResolveLink(query string) (models.CrossLink, error) {
	if strings.TrimSpace(query) == "" {
		return models.CrossLink{}, fmt.Errorf("siteservice: empty link target: %w", apperr.ErrInvalidInput)
	}
	metas, err := s.pub.LoadMetas()
	if err != nil {
		return models.CrossLink{}, err
	}
	return index.Build(metas).Resolve(query), nil
}

// Tags lists published tags, most used first.
func (s *Service) Tags() ([]models.TagWithStats, error) {
	metas, err := s.pub.LoadMetas()
	if err != nil {
		return nil, err
	}
	return tags.Build(metas).All(), nil
}

// Articles lists published article metadata, newest first.
func (s *Service) Articles() ([]models.Meta, error) {
	return s.pub.LoadMetas()
}
