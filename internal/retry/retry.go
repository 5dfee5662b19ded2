// Package retry runs fallible operations under a bounded exponential backoff
// schedule. The loop is a plain bounded for over attempt(n) with an explicit,
// injectable sleep so the schedule can be tested without real waiting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is one attempt. attempt is 1-based.
type Operation func(ctx context.Context, attempt int) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result reports how an Execute call went. Errors holds the error of every
// failed attempt, not just the last one.
type Result struct {
	Success  bool
	Attempts int
	Errors   []error
}

// Err returns nil on success and an *ExhaustedError otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &ExhaustedError{Attempts: r.Attempts, Errors: r.Errors}
}

// ExhaustedError is returned once retries are used up or a permanent error
// stopped the loop.
type ExhaustedError struct {
	Attempts int
	Errors   []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("retry: gave up after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every attempt error to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error { return e.Errors }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Handler executes operations under a Policy.
type Handler struct {
	policy  Policy
	sleep   SleepFunc
	observe func(attempt int, err error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(h *Handler) { h.sleep = fn }
}

// WithObserver is called after every failed attempt.
func WithObserver(fn func(attempt int, err error)) Option {
	return func(h *Handler) { h.observe = fn }
}

// New creates a Handler.
func New(policy Policy, opts ...Option) *Handler {
	h := &Handler{policy: policy, sleep: Sleep}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Policy returns the handler's schedule.
func (h *Handler) Policy() Policy { return h.policy }

// Execute runs op until it succeeds, returns a permanent error, the context
// ends, or the policy's attempts are used up.
func (h *Handler) Execute(ctx context.Context, op Operation) Result {
	var res Result
	maxAttempts := h.policy.Attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}
		res.Attempts = attempt
		err := op(ctx, attempt)
		if err == nil {
			res.Success = true
			return res
		}
		res.Errors = append(res.Errors, err)
		if h.observe != nil {
			h.observe(attempt, err)
		}
		if IsPermanent(err) || attempt == maxAttempts {
			return res
		}
		if err := h.sleep(ctx, h.policy.Delay(attempt)); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}
	}
	return res
}

// Do is Execute returning only the error.
func (h *Handler) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return h.Execute(ctx, func(ctx context.Context, _ int) error { return op(ctx) }).Err()
}

// Sleep waits for d, returning early with ctx.Err() when ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
