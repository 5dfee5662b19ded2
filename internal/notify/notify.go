// Package notify delivers end-of-sync notifications.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Severity grades a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Message is one notification.
type Message struct {
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Severity Severity          `json:"severity"`
	Metadata map[string]string `json:"metadata,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
}

// Notifier sends messages to some destination.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier; nil uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	level := slog.LevelInfo
	switch msg.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError, SeverityCritical:
		level = slog.LevelError
	}
	attrs := []any{
		slog.String("severity", string(msg.Severity)),
		slog.String("body", msg.Body),
	}
	for k, v := range msg.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.Log(ctx, level, msg.Subject, attrs...)
	return nil
}

// Multi fans a message out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
