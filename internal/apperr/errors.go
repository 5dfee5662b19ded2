// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	ErrInvalidDocument   = errors.New("invalid document")
	ErrDuplicateSlug     = errors.New("duplicate slug")
	ErrTooLarge          = errors.New("too large")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrInvalidTransition = errors.New("invalid status transition")
)
