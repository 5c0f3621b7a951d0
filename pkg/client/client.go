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
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/callgen"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the call-center REST endpoints
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for baseURL, e.g. http://localhost:8000
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithToken sets the bearer token sent on every request
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Health checks liveness
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unhealthy: status code %d", resp.StatusCode)
	}

	var status types.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Agents returns the logged-in agents
func (c *Client) Agents(ctx context.Context) (*types.AgentsSnapshot, error) {
	var snapshot types.AgentsSnapshot
	if err := c.getData(ctx, "/api/realtime/agents", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// CallStats returns the live counters
func (c *Client) CallStats(ctx context.Context) (*types.Stats, error) {
	var stats types.Stats
	if err := c.getData(ctx, "/api/realtime/call-stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DemoAgents returns the static demo roster
func (c *Client) DemoAgents(ctx context.Context) (*callgen.DemoRoster, error) {
	var roster callgen.DemoRoster
	if err := c.getData(ctx, "/api/call/demo/agents", &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

// DemoStatus returns directory sizes and uptime
func (c *Client) DemoStatus(ctx context.Context) (*types.DemoStatus, error) {
	var status types.DemoStatus
	if err := c.getData(ctx, "/api/call/demo/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// InitiateDemoCall asks for a demo agent call id
func (c *Client) InitiateDemoCall(ctx context.Context, req types.DemoInitiateRequest) (*types.DemoInitiateResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/call/demo/initiate", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result types.DemoInitiateResult
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallHistory lists archived calls for date (YYYY-MM-DD, empty for today),
// optionally narrowed to one agent
func (c *Client) CallHistory(ctx context.Context, date, agentID string) (*types.CallHistory, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if agentID != "" {
		q.Set("agentId", agentID)
	}
	path := "/api/call/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var history types.CallHistory
	if err := c.getData(ctx, path, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (c *Client) getData(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// decodeEnvelope unwraps {success, data, error} into out
func decodeEnvelope(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope types.APIResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if len(envelope.Data) == 0 {
		return errors.New("response carried no data")
	}
	return json.Unmarshal(envelope.Data, out)
}
