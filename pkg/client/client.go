// Package client is an HTTP client for the mnemo API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// Target is the API server URL (scheme + host + port).
	Target string

	// Actor is sent in the X-Agent-* headers of every request.
	Actor permission.Actor

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Client calls the /v1 endpoints as one actor.
type Client struct {
	base  *url.URL
	actor permission.Actor
	http  *http.Client
}

// New builds a Client.
func New(c Config) (*Client, error) {
	if strings.TrimSpace(c.Target) == "" {
		return nil, errors.New("api target is required")
	}
	base, err := url.Parse(c.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", c.Target)
	}
	if err := c.Actor.Validate(); err != nil {
		return nil, err
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{base: base, actor: c.Actor, http: c.HTTPClient}, nil
}

// Memory sends a tool envelope to POST /v1/memory. Per-item failures are
// reported in the response, not as an error.
func (c *Client) Memory(ctx context.Context, req tool.Request) (*tool.Response, error) {
	var resp tool.Response
	if err := c.post(ctx, "/v1/memory", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search calls POST /v1/memory/search.
func (c *Client) Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error) {
	var resp api.SearchResponse
	if err := c.post(ctx, "/v1/memory/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Inject calls POST /v1/memory/inject.
func (c *Client) Inject(ctx context.Context, req api.SearchRequest) ([]string, error) {
	var resp api.InjectResponse
	if err := c.post(ctx, "/v1/memory/inject", req, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Prune calls POST /v1/memory/prune and returns the deleted ids.
func (c *Client) Prune(ctx context.Context, req api.PruneRequest) ([]string, error) {
	var resp api.PruneResponse
	if err := c.post(ctx, "/v1/memory/prune", req, &resp); err != nil {
		return nil, err
	}
	return resp.Deleted, nil
}

// Record calls POST /v1/session/record.
func (c *Client) Record(ctx context.Context, req api.RecordRequest) (*session.Result, error) {
	var resp session.Result
	if err := c.post(ctx, "/v1/session/record", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics calls GET /v1/metrics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(api.HeaderAgentID, c.actor.AgentID)
	if c.actor.TeamID != "" {
		req.Header.Set(api.HeaderTeamID, c.actor.TeamID)
	}
	if c.actor.Role != "" {
		req.Header.Set(api.HeaderRole, string(c.actor.Role))
	}
	if c.actor.SystemID != 0 {
		req.Header.Set(api.HeaderSystemID, strconv.Itoa(c.actor.SystemID))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to mnemo API at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeError turns an error body back into a *memory.Error so callers can
// match it with errors.Is.
func decodeError(status int, data []byte) error {
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &memory.Error{
			Code:    memory.CodeInternal,
			Message: fmt.Sprintf("request failed (HTTP %d): %s", status, strings.TrimSpace(string(data))),
		}
	}

	return &memory.Error{Code: body.Code, Message: body.Error, Details: body.Details}
}
