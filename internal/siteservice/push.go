package siteservice

import (
	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/models"
)

var newID = uuid.NewString

// PushEvent is the subset of a GitHub push webhook payload that drives an
// incremental sync.
type PushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []PushCommit `json:"commits"`
}

// PushCommit lists the paths one pushed commit touched.
type PushCommit struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// Branch returns the branch name of a branch push, or "" for tags.
func (e PushEvent) Branch() string {
	const prefix = "refs/heads/"
	if len(e.Ref) > len(prefix) && e.Ref[:len(prefix)] == prefix {
		return e.Ref[len(prefix):]
	}
	return ""
}

// Request turns the push into an incremental sync request pinned to the
// pushed commit.
func (e PushEvent) Request() models.SyncRequest {
	var ch models.Changes
	for _, c := range e.Commits {
		ch.Added = append(ch.Added, c.Added...)
		ch.Modified = append(ch.Modified, c.Modified...)
		ch.Removed = append(ch.Removed, c.Removed...)
	}
	ref := e.After
	if e.Repository.FullName != "" {
		ref = e.Repository.FullName + "@" + e.After
	}
	return models.SyncRequest{
		Type:          models.SyncIncremental,
		RepositoryRef: ref,
		CommitHash:    e.After,
		Changes:       &ch,
	}
}
