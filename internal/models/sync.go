package models

import "time"

// SyncType selects how the affected document set is computed.
type SyncType string

const (
	SyncIncremental SyncType = "incremental"
	SyncFull        SyncType = "full"
)

// Changes lists source paths touched by a commit range.
type Changes struct {
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

// SyncRequest describes one synchronization run.
type SyncRequest struct {
	ID            string   `json:"id,omitempty"`
	Type          SyncType `json:"type"`
	RepositoryRef string   `json:"repository_ref"`
	Changes       *Changes `json:"changes,omitempty"`
	CommitHash    string   `json:"commit_hash,omitempty"`
	Force         bool     `json:"force,omitempty"`
}

// ArticleFailure records why one document could not be published.
type ArticleFailure struct {
	Slug  string `json:"slug"`
	Error string `json:"error"`
}

// AssetFailure records one post asset that was not copied. The post itself
// is still published.
type AssetFailure struct {
	Slug  string `json:"slug"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SyncResult summarizes a finished synchronization run.
type SyncResult struct {
	SyncID              string           `json:"sync_id"`
	Success             bool             `json:"success"`
	ArticlesRendered    []string         `json:"articles_rendered"`
	ArticlesFailed      []ArticleFailure `json:"articles_failed"`
	ArticlesDeleted     []string         `json:"articles_deleted"`
	AssetsFailed        []AssetFailure   `json:"assets_failed,omitempty"`
	TagPagesGenerated   int              `json:"tag_pages_generated"`
	IndexPagesGenerated bool             `json:"index_pages_generated"`
	CacheInvalidated    bool             `json:"cache_invalidated"`
	DurationMs          int64            `json:"duration_ms"`
}

// SyncState is the lifecycle state of a tracked sync.
type SyncState string

const (
	SyncInProgress SyncState = "in_progress"
	SyncCompleted  SyncState = "completed"
	SyncFailed     SyncState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s SyncState) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed
}

// SyncStatus is the tracked record of one sync run.
type SyncStatus struct {
	SyncID              string       `json:"sync_id"`
	CommitHash          string       `json:"commit_hash,omitempty"`
	Status              SyncState    `json:"status"`
	ArticlesProcessed   int          `json:"articles_processed"`
	ArticlesFailed      int          `json:"articles_failed"`
	Errors              []string     `json:"errors"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	StartedAt           time.Time    `json:"started_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
	Request             *SyncRequest `json:"request,omitempty"`
}

// BuildSummary is the outcome of a full pipeline build.
type BuildSummary struct {
	Success           bool          `json:"success"`
	Duration          time.Duration `json:"duration"`
	PostsRendered     int           `json:"posts_rendered"`
	PostsFailed       int           `json:"posts_failed"`
	PostsSkipped      int           `json:"posts_skipped"`
	AssetsUploaded    int           `json:"assets_uploaded"`
	TagPagesGenerated int           `json:"tag_pages_generated"`
	Errors            []string      `json:"errors"`
}
