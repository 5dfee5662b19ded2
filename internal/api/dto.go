package api

import "github.com/starford/ansuz/internal/models"

// RenderRequest is the optional body of POST /render.
type RenderRequest struct {
	Force      bool   `json:"force,omitempty" example:"true"`
	Repository string `json:"repository,omitempty" example:"owner/blog@main"`
}

// SyncAccepted is returned when a sync was started in the background.
type SyncAccepted struct {
	SyncID string `json:"syncId" example:"4f1c2a9e-8d7b-4b8a-9a55-0d4b7a1e2c3f" validate:"required"`
}

// SyncIgnored is returned for webhook deliveries that do not start a sync.
type SyncIgnored struct {
	Ignored bool   `json:"ignored" validate:"required"`
	Reason  string `json:"reason" example:"branch feature/x is not tracked"`
}

// StatusListResponse wraps recent sync statuses.
type StatusListResponse struct {
	Syncs []models.SyncStatus `json:"syncs" validate:"required"`
}

// TagListResponse wraps published tags.
type TagListResponse struct {
	Tags []models.TagWithStats `json:"tags" validate:"required"`
}
