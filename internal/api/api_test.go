package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/siteservice"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tracker"
)

const testSecret = "s3cret"

type testEnv struct {
	svc    *siteservice.Service
	src    *testutil.Source
	router http.Handler
}

// newTestEnv wires a service over an in-memory source and site.
// A non-empty token enables bearer auth.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	src := testutil.NewSource("content")
	tr, err := tracker.New(testutil.TestTrackerDB(t))
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	reg := prometheus.NewRegistry()
	pub := render.NewPublisher(render.NewPages(nil, render.Site{Title: "Test"}), storage.NewMemory(), 0)
	orch := syncer.New(syncer.Config{}, src, pub, tr,
		syncer.WithNotifier(&testutil.Notifier{}),
		syncer.WithMetrics(metrics.NewPrometheusRecorder(reg)),
	)
	svc := siteservice.New(orch, pub, nil)
	t.Cleanup(svc.Wait)

	router := NewRouter(svc, RouterOptions{
		AuthEnabled:   token != "",
		Token:         token,
		WebhookSecret: testSecret,
		Branch:        "main",
		Metrics:       metrics.HTTPHandler(reg),
	})
	return &testEnv{svc: svc, src: src, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRenderAndStatus(t *testing.T) {
	env := newTestEnv(t, "")
	env.src.Put("hello", "index.md", testutil.Doc("Hello", "2025-01-01", []string{"go"}, "hi"))

	w := env.do(t, http.MethodPost, "/render", []byte(`{"force":true}`), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
	var res models.SyncResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.ArticlesRendered) != 1 || res.ArticlesRendered[0] != "hello" {
		t.Fatalf("result = %+v", res)
	}

	w = env.do(t, http.MethodGet, "/status?limit=5", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list StatusListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Syncs) != 1 || list.Syncs[0].SyncID != res.SyncID {
		t.Fatalf("syncs = %+v", list.Syncs)
	}

	w = env.do(t, http.MethodGet, "/status/"+res.SyncID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var st models.SyncStatus
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Status != models.SyncCompleted || st.ArticlesProcessed != 1 {
		t.Errorf("status = %+v", st)
	}

	w = env.do(t, http.MethodGet, "/status/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestRenderWithoutBody(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, "/render", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/render", []byte(`{`), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/render", []byte(`{"repository":"nope/"}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad repository = %d, want 400", w.Code)
	}
}

func TestRetryEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	env.src.FailList(errors.New("upstream down"))
	w := env.do(t, http.MethodPost, "/render", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failing render = %d, want 500", w.Code)
	}
	recent, _ := env.svc.Recent(1)
	if len(recent) != 1 || recent[0].Status != models.SyncFailed {
		t.Fatalf("recent = %+v", recent)
	}
	failedID := recent[0].SyncID

	env.src.FailList(nil)
	w = env.do(t, http.MethodPost, "/retry/"+failedID, nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry = %d, body = %s", w.Code, w.Body.String())
	}
	var accepted SyncAccepted
	_ = json.Unmarshal(w.Body.Bytes(), &accepted)
	if accepted.SyncID == "" || accepted.SyncID == failedID {
		t.Fatalf("retry id = %q", accepted.SyncID)
	}
	env.svc.Wait()

	st, err := env.svc.Status(accepted.SyncID)
	if err != nil || st.Status != models.SyncCompleted {
		t.Fatalf("retried status = %+v, %v", st, err)
	}

	// Completed syncs are not retryable.
	w = env.do(t, http.MethodPost, "/retry/"+accepted.SyncID, nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("retry completed = %d, want 409", w.Code)
	}
	w = env.do(t, http.MethodPost, "/retry/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("retry missing = %d, want 404", w.Code)
	}
}

func TestHealthDegrades(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}

	env.src.FailList(errors.New("down"))
	for range tracker.DegradedThreshold {
		env.do(t, http.MethodPost, "/render", nil, nil)
	}
	w = env.do(t, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded health = %d, want 503", w.Code)
	}
	var h tracker.Health
	_ = json.Unmarshal(w.Body.Bytes(), &h)
	if h.Status != tracker.HealthDegraded || h.ConsecutiveFailures != tracker.DegradedThreshold {
		t.Errorf("health = %+v", h)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "tok")

	w := env.do(t, http.MethodGet, "/status", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	w = env.do(t, http.MethodGet, "/status", nil, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	w = env.do(t, http.MethodGet, "/status", nil, map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}

	// Health and metrics stay public.
	if w := env.do(t, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}

func pushBody(t *testing.T, ref string, added ...string) []byte {
	t.Helper()
	ev := siteservice.PushEvent{Ref: ref, After: "abc123"}
	ev.Repository.FullName = "owner/blog"
	ev.Commits = []siteservice.PushCommit{{Added: added}}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWebhookStartsIncrementalSync(t *testing.T) {
	env := newTestEnv(t, "tok")
	env.src.Put("new-post", "index.md", testutil.Doc("New Post", "2025-03-01", nil, "body"))

	body := pushBody(t, "refs/heads/main", "content/new-post/index.md")
	w := env.do(t, http.MethodPost, "/webhook", body, map[string]string{
		"X-GitHub-Event":      "push",
		"X-Hub-Signature-256": Sign(testSecret, body),
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("webhook = %d, body = %s", w.Code, w.Body.String())
	}
	var accepted SyncAccepted
	_ = json.Unmarshal(w.Body.Bytes(), &accepted)
	env.svc.Wait()

	st, err := env.svc.Status(accepted.SyncID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != models.SyncCompleted || st.CommitHash != "abc123" {
		t.Errorf("status = %+v", st)
	}
	if st.Request == nil || st.Request.Type != models.SyncIncremental {
		t.Errorf("request = %+v", st.Request)
	}
	arts, _ := env.svc.Articles()
	if len(arts) != 1 || arts[0].Slug != "new-post" {
		t.Errorf("articles = %+v", arts)
	}
}

func TestWebhookSignature(t *testing.T) {
	env := newTestEnv(t, "")
	body := pushBody(t, "refs/heads/main")

	w := env.do(t, http.MethodPost, "/webhook", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned = %d, want 401", w.Code)
	}
	w = env.do(t, http.MethodPost, "/webhook", body, map[string]string{
		"X-Hub-Signature-256": Sign("other", body),
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret = %d, want 401", w.Code)
	}
}

func TestWebhookIgnoresUntrackedRefs(t *testing.T) {
	env := newTestEnv(t, "")

	cases := []struct {
		name  string
		event string
		ref   string
	}{
		{"other branch", "push", "refs/heads/feature"},
		{"tag push", "push", "refs/tags/v1"},
		{"ping", "ping", "refs/heads/main"},
		{"issues", "issues", "refs/heads/main"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := pushBody(t, tc.ref)
			w := env.do(t, http.MethodPost, "/webhook", body, map[string]string{
				"X-GitHub-Event":      tc.event,
				"X-Hub-Signature-256": Sign(testSecret, body),
			})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var ign SyncIgnored
			_ = json.Unmarshal(w.Body.Bytes(), &ign)
			if !ign.Ignored {
				t.Errorf("response = %+v", ign)
			}
		})
	}
	if recent, _ := env.svc.Recent(0); len(recent) != 0 {
		t.Errorf("syncs started: %+v", recent)
	}
}

func TestTagsAndResolve(t *testing.T) {
	env := newTestEnv(t, "")
	env.src.Put("hello-world", "index.md", testutil.Doc("Hello World", "2025-01-01", []string{"Go"}, "hi"))
	if _, err := env.svc.Render(context.Background(), false, ""); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/tags", nil, nil)
	var tl TagListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tl)
	if w.Code != http.StatusOK || len(tl.Tags) != 1 || tl.Tags[0].Slug != "go" {
		t.Fatalf("tags = %d %+v", w.Code, tl)
	}

	w = env.do(t, http.MethodGet, "/resolve?q=Hello+World", nil, nil)
	var link models.CrossLink
	_ = json.Unmarshal(w.Body.Bytes(), &link)
	if w.Code != http.StatusOK || link.TargetSlug != "hello-world" {
		t.Fatalf("resolve = %d %+v", w.Code, link)
	}

	w = env.do(t, http.MethodGet, "/resolve", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty resolve = %d, want 400", w.Code)
	}
}

func TestMetricsExposeSyncCounters(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/render", nil, nil)

	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if !strings.Contains(w.Body.String(), "ansuz_") {
		t.Errorf("metrics body lacks ansuz namespace:\n%s", w.Body.String())
	}
}
