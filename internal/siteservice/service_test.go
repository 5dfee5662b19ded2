package siteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tracker"
)

func newService(t *testing.T) (*Service, *testutil.Source) {
	t.Helper()
	src := testutil.NewSource("content")
	tr, err := tracker.New(testutil.TestTrackerDB(t))
	if err != nil {
		t.Fatal(err)
	}
	pub := render.NewPublisher(render.NewPages(nil, render.Site{}), storage.NewMemory(), 0)
	orch := syncer.New(syncer.Config{}, src, pub, tr, syncer.WithNotifier(&testutil.Notifier{}))
	return New(orch, pub, nil), src
}

func TestRenderAndQueries(t *testing.T) {
	svc, src := newService(t)
	src.Put("hello-world", "index.md", testutil.Doc("Hello World", "2025-01-01", []string{"Go", "web"}, "hi"))
	src.Put("second", "index.md", testutil.Doc("Second", "2025-01-02", []string{"go"}, "two"))

	res, err := svc.Render(context.Background(), true, "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.ArticlesRendered) != 2 {
		t.Fatalf("result = %+v", res)
	}

	link, err := svc.ResolveLink("Hello World")
	if err != nil {
		t.Fatal(err)
	}
	if link.TargetSlug != "hello-world" {
		t.Errorf("link = %+v", link)
	}
	if _, err := svc.ResolveLink("  "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty query err = %v", err)
	}

	all, err := svc.Tags()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Slug != "go" || all[0].Count != 2 {
		t.Errorf("tags = %+v", all)
	}

	arts, _ := svc.Articles()
	if len(arts) != 2 || arts[0].Slug != "second" {
		t.Errorf("articles = %+v", arts)
	}

	recent, _ := svc.Recent(0)
	if len(recent) != 1 || recent[0].Status != models.SyncCompleted {
		t.Errorf("recent = %+v", recent)
	}
	if svc.Health().Status != tracker.HealthHealthy {
		t.Errorf("health = %+v", svc.Health())
	}
}

func TestRetryRunsInBackground(t *testing.T) {
	svc, src := newService(t)
	src.FailFetch("a", errors.New("down"))

	id, err := svc.Trigger(context.Background(), models.SyncRequest{
		Type:    models.SyncIncremental,
		Changes: &models.Changes{Added: []string{"content/a/index.md"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	st, err := svc.Status(id)
	if err != nil || st.Status != models.SyncFailed {
		t.Fatalf("status = %+v, %v", st, err)
	}

	src.FailFetch("a", nil)
	src.Put("a", "index.md", testutil.Doc("A", "2025-01-01", nil, "a"))
	newID, err := svc.Retry(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if newID == id {
		t.Error("retry should get a new id")
	}
	svc.Wait()
	st, _ = svc.Status(newID)
	if st.Status != models.SyncCompleted {
		t.Errorf("retried status = %s", st.Status)
	}

	if _, err := svc.Retry(context.Background(), newID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("retry of completed sync err = %v", err)
	}
}

func TestPushEventRequest(t *testing.T) {
	var ev PushEvent
	ev.Ref = "refs/heads/main"
	ev.After = "deadbeef"
	ev.Repository.FullName = "me/blog"
	ev.Commits = []PushCommit{{Added: []string{"content/a/index.md"}, Removed: []string{"content/b/index.md"}}}

	if ev.Branch() != "main" {
		t.Errorf("branch = %q", ev.Branch())
	}
	req := ev.Request()
	if req.Type != models.SyncIncremental || req.CommitHash != "deadbeef" || req.RepositoryRef != "me/blog@deadbeef" {
		t.Errorf("req = %+v", req)
	}
	if len(req.Changes.Added) != 1 || len(req.Changes.Removed) != 1 {
		t.Errorf("changes = %+v", req.Changes)
	}

	ev.Ref = "refs/tags/v1"
	if ev.Branch() != "" {
		t.Error("tag push should have no branch")
	}
}
