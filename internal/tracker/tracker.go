// Package tracker records the lifecycle and outcome of synchronization runs.
//
// Each sync id moves from in_progress to completed or failed exactly once.
// Across runs the tracker counts consecutive failed syncs; three or more in a
// row mark the service degraded.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const (
	// DefaultHistoryLimit is used when a caller passes a non-positive limit.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit caps every history listing.
	MaxHistoryLimit = 50
	// DegradedThreshold is the failure streak that flips health to degraded.
	DegradedThreshold = 3
)

// Health states.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Health is the service-level view of recent sync outcomes.
type Health struct {
	Status              string     `json:"status"`
	LastSyncAt          *time.Time `json:"lastSyncAt"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	store       Store
	now         func() time.Time
	consecutive int
	lastSyncAt  *time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker over store and restores the failure streak from the
// most recent finished sync.
func New(store Store, opts ...Option) (*Tracker, error) {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	recent, err := store.Recent(MaxHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("tracker: restore: %w", err)
	}
	for _, st := range recent {
		if !st.Status.Terminal() {
			continue
		}
		t.consecutive = st.ConsecutiveFailures
		if st.CompletedAt != nil {
			at := *st.CompletedAt
			t.lastSyncAt = &at
		}
		break
	}
	return t, nil
}

// Start records a new in_progress sync. Reusing an id is rejected.
func (t *Tracker) Start(id, commitHash string, req *models.SyncRequest) (models.SyncStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.store.Get(id); err == nil {
		return models.SyncStatus{}, fmt.Errorf("tracker: sync %s: %w", id, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return models.SyncStatus{}, err
	}

	st := models.SyncStatus{
		SyncID:              id,
		CommitHash:          commitHash,
		Status:              models.SyncInProgress,
		Errors:              []string{},
		ConsecutiveFailures: t.consecutive,
		StartedAt:           t.now().UTC(),
		Request:             req,
	}
	if err := t.store.Save(st); err != nil {
		return models.SyncStatus{}, err
	}
	return st, nil
}

// Complete closes a sync from its result. A result with any failed article
// ends the sync as failed; otherwise it is completed and the failure streak
// resets.
func (t *Tracker) Complete(id string, res *models.SyncResult) (models.SyncStatus, error) {
	errs := make([]string, 0, len(res.ArticlesFailed))
	for _, f := range res.ArticlesFailed {
		errs = append(errs, f.Slug+": "+f.Error)
	}
	return t.finish(id, len(res.ArticlesRendered)+len(res.ArticlesFailed), len(res.ArticlesFailed), errs, res.Success)
}

// Fail closes a sync that aborted before producing a result.
func (t *Tracker) Fail(id string, cause error) (models.SyncStatus, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.finish(id, 0, 0, []string{msg}, false)
}

func (t *Tracker) finish(id string, processed, failed int, errs []string, success bool) (models.SyncStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.store.Get(id)
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("tracker: sync %s: %w", id, err)
	}
	if st.Status.Terminal() {
		return models.SyncStatus{}, fmt.Errorf("tracker: sync %s is %s: %w", id, st.Status, apperr.ErrInvalidTransition)
	}

	now := t.now().UTC()
	if success {
		st.Status = models.SyncCompleted
		t.consecutive = 0
	} else {
		st.Status = models.SyncFailed
		t.consecutive++
	}
	st.ArticlesProcessed = processed
	st.ArticlesFailed = failed
	st.Errors = errs
	st.ConsecutiveFailures = t.consecutive
	st.CompletedAt = &now
	t.lastSyncAt = &now

	if err := t.store.Save(st); err != nil {
		return models.SyncStatus{}, err
	}
	return st, nil
}

// Get returns one sync's status or apperr.ErrNotFound.
func (t *Tracker) Get(id string) (models.SyncStatus, error) {
	return t.store.Get(id)
}

// Recent lists syncs most recent first. Non-positive limits use the default
// and every limit is capped at MaxHistoryLimit.
func (t *Tracker) Recent(limit int) ([]models.SyncStatus, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return t.store.Recent(limit)
}

// ConsecutiveFailures returns the current failure streak.
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutive
}

// Health reports degraded once the failure streak reaches DegradedThreshold.
func (t *Tracker) Health() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := Health{Status: HealthHealthy, ConsecutiveFailures: t.consecutive}
	if t.consecutive >= DegradedThreshold {
		h.Status = HealthDegraded
	}
	if t.lastSyncAt != nil {
		at := *t.lastSyncAt
		h.LastSyncAt = &at
	}
	return h
}
