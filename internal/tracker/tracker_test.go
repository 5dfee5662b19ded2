package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTracker(t *testing.T, store Store) *Tracker {
	t.Helper()
	clock := &stepClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	tr, err := New(store, WithClock(clock.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func failedResult(id string) *models.SyncResult {
	return &models.SyncResult{
		SyncID:           id,
		ArticlesRendered: []string{"a"},
		ArticlesFailed:   []models.ArticleFailure{{Slug: "b", Error: "boom"}},
	}
}

func okResult(id string) *models.SyncResult {
	return &models.SyncResult{SyncID: id, Success: true, ArticlesRendered: []string{"a", "b"}}
}

func TestLifecycle_Completed(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())

	st, err := tr.Start("s1", "abc123", &models.SyncRequest{Type: models.SyncFull})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Status != models.SyncInProgress || st.CompletedAt != nil {
		t.Fatalf("unexpected start status: %+v", st)
	}

	st, err = tr.Complete("s1", okResult("s1"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if st.Status != models.SyncCompleted {
		t.Errorf("status = %s, want completed", st.Status)
	}
	if st.ArticlesProcessed != 2 || st.ArticlesFailed != 0 {
		t.Errorf("counts = %d/%d", st.ArticlesProcessed, st.ArticlesFailed)
	}
	if st.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestLifecycle_PartialFailureIsFailed(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())
	_, _ = tr.Start("s1", "", nil)
	st, err := tr.Complete("s1", failedResult("s1"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if st.Status != models.SyncFailed {
		t.Errorf("status = %s, want failed", st.Status)
	}
	if len(st.Errors) != 1 || st.Errors[0] != "b: boom" {
		t.Errorf("errors = %v", st.Errors)
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())
	_, _ = tr.Start("s1", "", nil)
	_, _ = tr.Fail("s1", errors.New("list failed"))

	if _, err := tr.Complete("s1", okResult("s1")); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("complete after fail: err = %v", err)
	}
	if _, err := tr.Fail("s1", nil); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("fail after fail: err = %v", err)
	}
	if _, err := tr.Start("s1", "", nil); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("restart: err = %v", err)
	}
}

func TestUnknownSync(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())
	if _, err := tr.Get("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get: err = %v", err)
	}
	if _, err := tr.Complete("missing", okResult("missing")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Complete: err = %v", err)
	}
}

func TestConsecutiveFailuresAndHealth(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())

	if h := tr.Health(); h.Status != HealthHealthy || h.LastSyncAt != nil {
		t.Fatalf("initial health = %+v", h)
	}

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("f%d", i)
		_, _ = tr.Start(id, "", nil)
		st, _ := tr.Fail(id, errors.New("boom"))
		if st.ConsecutiveFailures != i {
			t.Errorf("after %d failures streak = %d", i, st.ConsecutiveFailures)
		}
	}
	h := tr.Health()
	if h.Status != HealthDegraded || h.ConsecutiveFailures != 3 {
		t.Errorf("health = %+v, want degraded/3", h)
	}
	if h.LastSyncAt == nil {
		t.Error("last sync time missing")
	}

	_, _ = tr.Start("ok", "", nil)
	_, _ = tr.Complete("ok", okResult("ok"))
	if h := tr.Health(); h.Status != HealthHealthy || h.ConsecutiveFailures != 0 {
		t.Errorf("health after success = %+v", h)
	}
}

func TestRecent_OrderAndLimit(t *testing.T) {
	tr := newTracker(t, NewMemoryStore())
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("s%02d", i)
		_, _ = tr.Start(id, "", nil)
		_, _ = tr.Complete(id, okResult(id))
	}

	got, err := tr.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 || got[0].SyncID != "s59" || got[2].SyncID != "s57" {
		t.Errorf("recent(3) = %v", ids(got))
	}

	got, _ = tr.Recent(500)
	if len(got) != MaxHistoryLimit {
		t.Errorf("recent(500) len = %d, want %d", len(got), MaxHistoryLimit)
	}

	got, _ = tr.Recent(0)
	if len(got) != DefaultHistoryLimit {
		t.Errorf("recent(0) len = %d, want %d", len(got), DefaultHistoryLimit)
	}
}

func TestNew_RestoresStreak(t *testing.T) {
	store := NewMemoryStore()
	first := newTracker(t, store)
	for _, id := range []string{"a", "b"} {
		_, _ = first.Start(id, "", nil)
		_, _ = first.Fail(id, errors.New("x"))
	}
	_, _ = first.Start("running", "", nil)

	second := newTracker(t, store)
	if n := second.ConsecutiveFailures(); n != 2 {
		t.Errorf("restored streak = %d, want 2", n)
	}
}

func ids(sts []models.SyncStatus) []string {
	out := make([]string, len(sts))
	for i, s := range sts {
		out[i] = s.SyncID
	}
	return out
}
