// ABOUTME: HTTP client that forwards chat messages to the workflow webhook
// ABOUTME: Posts the message envelope and normalizes the reply

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a webhook response we read.
const maxResponseBytes = 4 * 1024 * 1024

// Request is one user message bound for the workflow.
type Request struct {
	Message   string
	SessionID string
	Email     string
	Name      string
}

// payload is the wire envelope the workflow expects.
type payload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Client delivers chat messages to the remote workflow endpoint.
// Long-running workflows are expected, so the underlying HTTP client
// carries no timeout of its own; callers bound the wait with ctx.
type Client struct {
	url        string
	source     string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a webhook client for the given endpoint URL. The
// source tag identifies this frontend in the workflow's payloads.
func NewClient(url, source string) *Client {
	return &Client{
		url:        url,
		source:     source,
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "webhook"),
		now:        time.Now,
	}
}

// Send delivers one message to the workflow and returns the normalized
// reply text.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	env := payload{
		Message:   req.Message,
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
		Timestamp: c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Source:    c.source,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	reply, err := Normalize(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return "", err
	}

	c.logger.Debug("webhook reply received",
		"session_id", req.SessionID,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"reply_len", len(reply))
	return reply, nil
}
