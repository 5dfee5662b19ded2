// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes sync and site tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/siteservice"
)

const contractURI = "ansuz://post-format"

// Server wraps the MCP server with the ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *siteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *siteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Get the status of one sync run, or the service health when no id is given."),
		mcp.WithString("id", mcp.Description("Sync id (empty for health)")),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("list_syncs",
		mcp.WithDescription("List recent sync runs, most recent first."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 20)")),
	), s.listSyncs)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve a [[wikilink]] target against the published posts. "+
			"Matches slug, then title, then alias."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Link target text, e.g. \"Go Generics\"")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List published tags with usage counts, most used first."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("trigger_sync",
		mcp.WithDescription("Start a sync in the background and return its id. "+
			"A full sync re-renders every post; an incremental sync needs changed paths."),
		mcp.WithString("type", mcp.Description("full or incremental (default full)"), mcp.Enum("full", "incremental")),
		mcp.WithString("repository", mcp.Description("owner/name[@ref] or a bare ref (default: configured repository)")),
		mcp.WithArray("paths", mcp.Description("Changed source paths for an incremental sync"), mcp.WithStringItems()),
		mcp.WithArray("removed", mcp.Description("Removed source paths for an incremental sync"), mcp.WithStringItems()),
	), s.triggerSync)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the post layout and front matter contract. "+
			"Call this before preparing posts for the content repository."),
	), s.getPostContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Post Format Contract",
			mcp.WithResourceDescription("Source layout and front matter every post must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return jsonResult(s.svc.Health())
	}
	st, err := s.svc.Status(id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("sync not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) listSyncs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	syncs, err := s.svc.Recent(req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(syncs)
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	link, err := s.svc.ResolveLink(target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if link.TargetSlug == "" {
		return mcp.NewToolResultText(fmt.Sprintf("unresolved: %s", target)), nil
	}
	return jsonResult(link)
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.svc.Tags()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(all) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	return jsonResult(all)
}

func (s *Server) triggerSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sr := models.SyncRequest{
		Type:          models.SyncType(req.GetString("type", string(models.SyncFull))),
		RepositoryRef: req.GetString("repository", ""),
	}
	switch sr.Type {
	case models.SyncFull:
	case models.SyncIncremental:
		changed := req.GetStringSlice("paths", nil)
		removed := req.GetStringSlice("removed", nil)
		if len(changed) == 0 && len(removed) == 0 {
			return mcp.NewToolResultError("incremental sync needs paths or removed"), nil
		}
		sr.Changes = &models.Changes{Modified: changed, Removed: removed}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown sync type: %s", sr.Type)), nil
	}

	id, err := s.svc.Trigger(ctx, sr)
	if errors.Is(err, apperr.ErrSyncInProgress) {
		return mcp.NewToolResultError("a sync is already in progress"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("started: %s", id)), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
