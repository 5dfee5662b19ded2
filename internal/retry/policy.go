package retry

import (
	"fmt"
	"time"
)

// Policy encapsulates the exponential backoff schedule. It is immutable after
// construction.
type Policy struct {
	MaxRetries int           // retries after the first failure
	BaseDelay  time.Duration // delay before the first retry
}

// DefaultPolicy retries twice (three attempts) waiting 1s then 2s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: time.Second}
}

// NewPolicy builds a policy from raw config fields; negative retries and
// non-positive delays fall back to defaults.
func NewPolicy(maxRetries int, baseDelay time.Duration) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if baseDelay > 0 {
		p.BaseDelay = baseDelay
	}
	return p
}

// Attempts is the total number of tries, first attempt included.
func (p Policy) Attempts() int {
	return p.MaxRetries + 1
}

// Delay returns the wait before retry n (1-based): BaseDelay * 2^(n-1).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return p.BaseDelay * (1 << (n - 1))
}

// Validate ensures invariants.
func (p Policy) Validate() error {
	if p.BaseDelay <= 0 {
		return fmt.Errorf("retry: base delay must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("retry: max retries cannot be negative")
	}
	return nil
}
