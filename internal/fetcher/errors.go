package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
)

// StatusError is a non-success HTTP response from the source host.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: %s: unexpected status %d", e.URL, e.StatusCode)
}

// Transient reports whether a retry could succeed (rate limit or server error).
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient classifies err for the retry loop. Status errors are transient
// for 429 and 5xx; a missing path never is; network errors are transient
// unless the caller's context ended.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, apperr.ErrNotFound) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var fe *fileError
	if errors.As(err, &fe) {
		return false
	}
	return true
}

// fileError marks errors about the content itself, such as size violations.
type fileError struct{ err error }

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }
