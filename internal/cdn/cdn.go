// Package cdn requests edge cache invalidation for published paths.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Invalidator purges cached copies of paths from a distribution.
type Invalidator interface {
	Invalidate(ctx context.Context, distributionID string, paths []string, callerReference string) error
}

// NewCallerReference returns a unique reference for one invalidation request.
func NewCallerReference() string {
	return "ansuz-" + uuid.NewString()
}

// Noop accepts every request and does nothing.
type Noop struct{}

func (Noop) Invalidate(context.Context, string, []string, string) error { return nil }

// Request is the JSON body sent by HTTP.
type Request struct {
	DistributionID  string   `json:"distributionId"`
	Paths           []string `json:"paths"`
	CallerReference string   `json:"callerReference"`
}

// HTTP posts invalidation requests to a purge endpoint.
type HTTP struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTP creates an HTTP invalidator. A nil client gets a 30s timeout.
func NewHTTP(endpoint, token string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{endpoint: endpoint, token: token, client: client}
}

func (h *HTTP) Invalidate(ctx context.Context, distributionID string, paths []string, callerReference string) error {
	if len(paths) == 0 {
		return nil
	}
	body, err := json.Marshal(Request{
		DistributionID:  distributionID,
		Paths:           paths,
		CallerReference: callerReference,
	})
	if err != nil {
		return fmt.Errorf("cdn: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cdn: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("cdn: invalidate: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cdn: invalidate: unexpected status %d", resp.StatusCode)
	}
	return nil
}
