package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where sync notifications are published.
const DefaultSubject = "ansuz.sync.notifications"

// Publisher is the subset of *nats.Conn used for delivery.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes notifications as JSON to a subject.
type NATS struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

// NewNATS wraps an existing publisher.
func NewNATS(pub Publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{pub: pub, subject: subject}
}

// DialNATS connects to url and returns a notifier owning the connection.
func DialNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("ansuz"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}
	n := NewNATS(conn, subject)
	n.conn = conn
	return n, nil
}

// Subject returns the subject messages go to.
func (n *NATS) Subject() string { return n.subject }

func (n *NATS) Send(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", n.subject, err)
	}
	return nil
}

// Close drains the owned connection, if any.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
