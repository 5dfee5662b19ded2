package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/siteservice"
	"github.com/starford/ansuz/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *siteservice.Service
	branch string
}

// NewHandler creates a new Handler. Webhook pushes to branches other than
// branch are ignored unless branch is empty.
func NewHandler(svc *siteservice.Service, branch string) *Handler {
	return &Handler{svc: svc, branch: branch}
}

// ListStatus handles GET /status.
//
//	@Summary		List recent syncs
//	@Tags			sync
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum entries"
//	@Success		200		{object}	StatusListResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) ListStatus(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	syncs, err := h.svc.Recent(limit)
	if err != nil {
		slog.Error("list syncs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StatusListResponse{Syncs: syncs})
}

// GetStatus handles GET /status/{id}.
//
//	@Summary		Get one sync status
//	@Tags			sync
//	@Produce		json
//	@Param			id	path		string	true	"Sync id"
//	@Success		200	{object}	models.SyncStatus
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/status/{id} [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get sync", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Retry handles POST /retry/{id}.
//
//	@Summary		Retry a failed sync
//	@Tags			sync
//	@Produce		json
//	@Param			id	path		string	true	"Failed sync id"
//	@Success		202	{object}	SyncAccepted
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/retry/{id} [post]
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "retry sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncAccepted{SyncID: id})
}

// Health handles GET /health.
//
//	@Summary		Report sync health
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	tracker.Health
//	@Failure		503	{object}	tracker.Health
//	@Router			/health [get]
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	health := h.svc.Health()
	status := http.StatusOK
	if health.Status == tracker.HealthDegraded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Render handles POST /render.
//
//	@Summary		Run a full render of the site
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	false	"Render options"
//	@Success		202		{object}	models.SyncResult
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	res, err := h.svc.Render(r.Context(), req.Force, req.Repository)
	if err != nil {
		writeServiceError(w, "render", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// Webhook handles POST /webhook for GitHub push deliveries.
//
//	@Summary		Start an incremental sync from a push
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Success		202	{object}	SyncAccepted
//	@Success		200	{object}	SyncIgnored
//	@Failure		401	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "", "push":
	case "ping":
		writeJSON(w, http.StatusOK, SyncIgnored{Ignored: true, Reason: "ping"})
		return
	default:
		writeJSON(w, http.StatusOK, SyncIgnored{Ignored: true, Reason: "unsupported event " + event})
		return
	}

	var push siteservice.PushEvent
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	branch := push.Branch()
	if branch == "" || (h.branch != "" && branch != h.branch) {
		writeJSON(w, http.StatusOK, SyncIgnored{
			Ignored: true,
			Reason:  fmt.Sprintf("ref %s is not tracked", push.Ref),
		})
		return
	}

	id, err := h.svc.Trigger(r.Context(), push.Request())
	if err != nil {
		writeServiceError(w, "webhook sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncAccepted{SyncID: id})
}

// Tags handles GET /tags.
//
//	@Summary		List published tags
//	@Tags			site
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	all, err := h.svc.Tags()
	if err != nil {
		writeServiceError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: all})
}

// Resolve handles GET /resolve?q=.
//
//	@Summary		Resolve a wikilink target
//	@Tags			site
//	@Produce		json
//	@Param			q	query		string	true	"Link target"
//	@Success		200	{object}	models.CrossLink
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.ResolveLink(r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, "resolve link", err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, errorBody("sync already in progress"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("sync is not retryable"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("sync id already used"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
