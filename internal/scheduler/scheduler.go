// Package scheduler triggers periodic full syncs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Syncer is the part of the orchestrator the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error)
	IsSyncInProgress() bool
}

// Scheduler wraps a gocron scheduler running full syncs on an interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	syncer    Syncer
	logger    *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a Scheduler.
func New(s Syncer, logger *slog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: gs, syncer: s, logger: logger, ctx: context.Background()}, nil
}

// SchedulePeriodicSync adds a full sync every interval and returns the job id.
// Overlapping runs are rescheduled rather than queued.
func (s *Scheduler) SchedulePeriodicSync(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.RunOnce() }),
		gocron.WithName("full-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("scheduler: create periodic sync job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running jobs. Syncs started by the scheduler use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.logger.Info("scheduler: starting")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info("scheduler: stopping")
	return s.scheduler.Shutdown()
}

// RunOnce triggers one full sync unless one is already running. It reports
// whether a sync ran.
func (s *Scheduler) RunOnce() bool {
	if s.syncer.IsSyncInProgress() {
		s.logger.Info("scheduler: sync in progress, skipping tick")
		return false
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	res, err := s.syncer.Sync(ctx, models.SyncRequest{Type: models.SyncFull})
	switch {
	case errors.Is(err, apperr.ErrSyncInProgress):
		s.logger.Info("scheduler: sync in progress, skipping tick")
		return false
	case err != nil:
		s.logger.Error("scheduler: scheduled sync failed", slog.String("error", err.Error()))
		return true
	}
	s.logger.Info("scheduler: scheduled sync finished",
		slog.String("sync_id", res.SyncID),
		slog.Bool("success", res.Success))
	return true
}
