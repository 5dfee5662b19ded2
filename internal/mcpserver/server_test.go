package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/siteservice"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tracker"
)

func testServer(t *testing.T) (*Server, *siteservice.Service, *testutil.Source) {
	t.Helper()

	src := testutil.NewSource("content")
	tr, err := tracker.New(testutil.TestTrackerDB(t))
	if err != nil {
		t.Fatal(err)
	}
	pub := render.NewPublisher(render.NewPages(nil, render.Site{}), storage.NewMemory(), 0)
	orch := syncer.New(syncer.Config{}, src, pub, tr, syncer.WithNotifier(&testutil.Notifier{}))
	svc := siteservice.New(orch, pub, nil)
	t.Cleanup(svc.Wait)

	return New(svc), svc, src
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_status":
		result, err = srv.syncStatus(ctx, req)
	case "list_syncs":
		result, err = srv.listSyncs(ctx, req)
	case "resolve_link":
		result, err = srv.resolveLink(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "trigger_sync":
		result, err = srv.triggerSync(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func publish(t *testing.T, svc *siteservice.Service, src *testutil.Source) {
	t.Helper()
	src.Put("go-generics", "index.md", testutil.Doc("Go Generics", "2025-01-01", []string{"Go", "types"}, "body"))
	src.Put("tooling", "index.md", testutil.Doc("Tooling", "2025-01-02", []string{"go"}, "body"))
	if _, err := svc.Render(context.Background(), false, ""); err != nil {
		t.Fatal(err)
	}
}

func TestTriggerSyncAndStatus(t *testing.T) {
	srv, svc, src := testServer(t)
	src.Put("hello", "index.md", testutil.Doc("Hello", "2025-01-01", nil, "hi"))

	r := callTool(t, srv, "trigger_sync", map[string]interface{}{})
	text := resultText(r)
	if r.IsError || !strings.HasPrefix(text, "started: ") {
		t.Fatalf("trigger result = %q", text)
	}
	id := strings.TrimPrefix(text, "started: ")
	svc.Wait()

	r = callTool(t, srv, "sync_status", map[string]interface{}{"id": id})
	var st models.SyncStatus
	if err := json.Unmarshal([]byte(resultText(r)), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.SyncID != id || st.Status != models.SyncCompleted {
		t.Errorf("status = %+v", st)
	}

	r = callTool(t, srv, "list_syncs", map[string]interface{}{"limit": 5})
	var syncs []models.SyncStatus
	_ = json.Unmarshal([]byte(resultText(r)), &syncs)
	if len(syncs) != 1 {
		t.Errorf("syncs = %+v", syncs)
	}
}

func TestSyncStatusHealthAndMissing(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "sync_status", map[string]interface{}{})
	if !strings.Contains(resultText(r), tracker.HealthHealthy) {
		t.Errorf("health = %q", resultText(r))
	}

	r = callTool(t, srv, "sync_status", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing sync")
	}
}

func TestTriggerIncrementalNeedsPaths(t *testing.T) {
	srv, svc, src := testServer(t)

	r := callTool(t, srv, "trigger_sync", map[string]interface{}{"type": "incremental"})
	if !r.IsError {
		t.Error("expected error without paths")
	}
	r = callTool(t, srv, "trigger_sync", map[string]interface{}{"type": "weekly"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}

	src.Put("a", "index.md", testutil.Doc("A", "2025-01-01", nil, "a"))
	r = callTool(t, srv, "trigger_sync", map[string]interface{}{
		"type":  "incremental",
		"paths": []interface{}{"content/a/index.md"},
	})
	if r.IsError {
		t.Fatalf("incremental = %q", resultText(r))
	}
	svc.Wait()
	arts, _ := svc.Articles()
	if len(arts) != 1 || arts[0].Slug != "a" {
		t.Errorf("articles = %+v", arts)
	}
}

func TestResolveLink(t *testing.T) {
	srv, svc, src := testServer(t)
	publish(t, svc, src)

	r := callTool(t, srv, "resolve_link", map[string]interface{}{"target": "go generics"})
	var link models.CrossLink
	if err := json.Unmarshal([]byte(resultText(r)), &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if link.TargetSlug != "go-generics" {
		t.Errorf("link = %+v", link)
	}

	r = callTool(t, srv, "resolve_link", map[string]interface{}{"target": "Rust"})
	if r.IsError || resultText(r) != "unresolved: Rust" {
		t.Errorf("unresolved = %q", resultText(r))
	}

	r = callTool(t, srv, "resolve_link", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without target")
	}
}

func TestListTags(t *testing.T) {
	srv, svc, src := testServer(t)

	r := callTool(t, srv, "list_tags", map[string]interface{}{})
	if resultText(r) != "no tags found" {
		t.Errorf("empty tags = %q", resultText(r))
	}

	publish(t, svc, src)
	r = callTool(t, srv, "list_tags", map[string]interface{}{})
	var all []models.TagWithStats
	if err := json.Unmarshal([]byte(resultText(r)), &all); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	if len(all) != 2 || all[0].Slug != "go" || all[0].Count != 2 {
		t.Errorf("tags = %+v", all)
	}
}

func TestPostContract(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_post_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "index.md") {
		t.Error("contract does not describe index.md")
	}
}
