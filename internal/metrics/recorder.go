// Package metrics exposes build and sync observability hooks.
package metrics

import "time"

// ArticleResult labels per-article outcomes.
type ArticleResult string

const (
	ArticleRendered ArticleResult = "rendered"
	ArticleFailed   ArticleResult = "failed"
	ArticleDeleted  ArticleResult = "deleted"
	ArticleSkipped  ArticleResult = "skipped"
)

// Outcome labels a finished build or sync.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected" // refused because another sync was running
)

// Recorder receives observations from the pipeline and the sync orchestrator.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome Outcome)
	ObserveSyncDuration(syncType string, d time.Duration)
	IncSyncOutcome(syncType string, outcome Outcome)
	AddArticles(result ArticleResult, n int)
	IncRetry(op string)
	IncRetryExhausted(op string)
	IncInvalidation(success bool)
	SetConsecutiveFailures(n int)
}

// NoopRecorder discards everything. It is the default when metrics are off.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)        {}
func (NoopRecorder) IncBuildOutcome(Outcome)                   {}
func (NoopRecorder) ObserveSyncDuration(string, time.Duration) {}
func (NoopRecorder) IncSyncOutcome(string, Outcome)            {}
func (NoopRecorder) AddArticles(ArticleResult, int)            {}
func (NoopRecorder) IncRetry(string)                           {}
func (NoopRecorder) IncRetryExhausted(string)                  {}
func (NoopRecorder) IncInvalidation(bool)                      {}
func (NoopRecorder) SetConsecutiveFailures(int)                {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
