// Package client is a typed test client for the mock device agent's
// test-control surface.
//
// It wraps the HTTP endpoints with Go types and provides assertion
// helpers that report failures as *AssertionError values, so callers can
// distinguish "the device did the wrong thing" from transport failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to one harness instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the harness at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command mirrors one recorded device-control invocation.
type Command struct {
	Seq       int64          `json:"seq"`
	Action    string         `json:"action"`
	DeviceID  string         `json:"device_id"`
	Params    map[string]any `json:"params"`
	Timestamp time.Time      `json:"timestamp"`
}

// State is the engine's current position: nil CurrentState means no
// scenario is loaded.
type State struct {
	CurrentState *string  `json:"current_state"`
	History      []string `json:"history"`
}

// ExpectResult is the server's comparison of recorded vs expected
// action sequences.
type ExpectResult struct {
	Match    bool     `json:"match"`
	Expected []string `json:"expected"`
	Actual   []string `json:"actual"`
	Message  string   `json:"message"`
}

// LoadResult describes a successful scenario load.
type LoadResult struct {
	Status   string   `json:"status"`
	Scenario string   `json:"scenario"`
	States   []string `json:"states"`
	Session  string   `json:"session"`
}

// Reset clears the harness's command log.
func (c *Client) Reset(ctx context.Context) error {
	return c.post(ctx, "/test/reset", nil, nil)
}

// LoadScenario loads a scenario file on the harness host.
func (c *Client) LoadScenario(ctx context.Context, scenarioPath string) (*LoadResult, error) {
	var result LoadResult
	req := map[string]string{"scenario_path": scenarioPath}
	if err := c.post(ctx, "/test/load_scenario", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Commands returns all recorded commands in submission order.
func (c *Client) Commands(ctx context.Context) ([]Command, error) {
	var commands []Command
	if err := c.get(ctx, "/test/commands", &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

// Actions returns the simplified command list: action name with params
// flattened alongside.
func (c *Client) Actions(ctx context.Context) ([]map[string]any, error) {
	var actions []map[string]any
	if err := c.get(ctx, "/test/commands/actions", &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// State returns the engine's current state and history.
func (c *Client) State(ctx context.Context) (*State, error) {
	var state State
	if err := c.get(ctx, "/test/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Expect asks the server to compare the recorded action sequence
// against expected.
func (c *Client) Expect(ctx context.Context, expected []string) (*ExpectResult, error) {
	path := "/test/expect?actions=" + url.QueryEscape(strings.Join(expected, ","))
	var result ExpectResult
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- transport plumbing ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
