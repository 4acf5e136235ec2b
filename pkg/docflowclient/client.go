// Package docflowclient is a thin Go client for a running docflowd's
// HTTP command surface (spec §6), used by cmd/docflowctl and available
// to any other Go program that wants to drive a session without
// hand-rolling HTTP calls.
package docflowclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one docflowd instance.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Client targeting baseURL (e.g. "http://localhost:8420"),
// authenticating with apiKey as a bearer token.
func New(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: 30 * time.Second}}
}

// OpenSession starts (or reattaches to) the session for a workspace path.
func (c *Client) OpenSession(ctx context.Context, path string) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/v1/sessions", map[string]string{"path": path}, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// CommandRequest mirrors the server's commandRequest wire shape.
type CommandRequest struct {
	Action        string         `json:"action"`
	Params        map[string]any `json:"params,omitempty"`
	Mode          string         `json:"mode,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Source        string         `json:"source,omitempty"`
	LockToken     string         `json:"lock_token,omitempty"`
	TimeoutMS     int            `json:"timeout_ms,omitempty"`
}

// CommandResult mirrors the agent.Result envelope (spec §4.8 step 11).
type CommandResult struct {
	Status        string         `json:"Status"`
	Value         any            `json:"Value"`
	Err           map[string]any `json:"Err"`
	Action        string         `json:"Action"`
	Idempotent    bool           `json:"Idempotent"`
	CorrelationID string         `json:"CorrelationID"`
	DurationUS    int64          `json:"DurationUS"`
	Rollback      bool           `json:"Rollback"`
}

// Execute issues one command against sessionID.
func (c *Client) Execute(ctx context.Context, sessionID string, req CommandRequest) (*CommandResult, error) {
	var result CommandResult
	path := fmt.Sprintf("/api/v1/sessions/%s/commands", sessionID)
	if err := c.post(ctx, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AcquireLock, ReleaseLock, ForceTakeover wrap the session's lock
// subresource (spec §4.6).
func (c *Client) AcquireLock(ctx context.Context, sessionID, owner, expectedToken string) (map[string]any, error) {
	return c.lockOp(ctx, sessionID, map[string]string{"op": "acquire", "owner": owner, "expected_token": expectedToken})
}

func (c *Client) ReleaseLock(ctx context.Context, sessionID, token string) (map[string]any, error) {
	return c.lockOp(ctx, sessionID, map[string]string{"op": "release", "token": token})
}

func (c *Client) ForceTakeover(ctx context.Context, sessionID, owner, reason string) (map[string]any, error) {
	return c.lockOp(ctx, sessionID, map[string]string{"op": "force", "owner": owner, "reason": reason})
}

func (c *Client) lockOp(ctx context.Context, sessionID string, body map[string]string) (map[string]any, error) {
	var result map[string]any
	path := fmt.Sprintf("/api/v1/sessions/%s/lock", sessionID)
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("docflowd returned %d: %v", resp.StatusCode, errBody)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
