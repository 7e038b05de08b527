// Package agent is the Go client for the broker's node-facing API. A relay
// operator registers the node once with their own access token, keeps the
// returned node token, and drives heartbeats, traffic reports, and the
// shutdown announcement with it.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the broker API client.
type Client struct {
	baseURL    string
	nodeToken  string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithNodeToken sets the node token (e.g. "node_xxx") for a node that is
// already registered.
func WithNodeToken(token string) Option {
	return func(client *Client) {
		client.nodeToken = token
	}
}

// NewClient creates a broker API client.
//
// Parameters:
//   - baseURL: the broker base URL (e.g. "https://broker.example.com")
//
// Heartbeat, ReportTraffic, and Offline authenticate with the node token,
// supplied through WithNodeToken or UseNodeToken. Register authenticates
// with the operator's access token instead, because the node token does not
// exist until registration returns it.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseNodeToken swaps the node token, typically right after Register returns
// one.
func (c *Client) UseNodeToken(token string) {
	c.nodeToken = token
}

// Register adds the node to the directory. The result carries the node's API
// token exactly once; the client starts using it for the node-facing calls.
func (c *Client) Register(ctx context.Context, accessToken string, req *RegisterNodeRequest) (*RegisterNodeResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/nodes", c.baseURL)

	var result RegisterNodeResult
	if err := c.doRequest(ctx, http.MethodPost, endpoint, accessToken, req, &result); err != nil {
		return nil, fmt.Errorf("register node: %w", err)
	}
	c.nodeToken = result.APIToken
	return &result, nil
}

// Heartbeat reports the node's liveness and quality counters.
func (c *Client) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agent/heartbeat", c.baseURL)

	var result HeartbeatResult
	if err := c.doRequest(ctx, http.MethodPost, endpoint, c.nodeToken, req, &result); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	return &result, nil
}

// ReportTraffic reports a session's cumulative relayed bytes. A Closed result
// means a guard ended the session and the tunnel must come down.
func (c *Client) ReportTraffic(ctx context.Context, sessionSID string, cumulativeBytes uint64) (*TrafficReportResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agent/sessions/%s/traffic", c.baseURL, url.PathEscape(sessionSID))

	body := map[string]any{
		"cumulative_bytes": cumulativeBytes,
	}

	var result TrafficReportResult
	if err := c.doRequest(ctx, http.MethodPost, endpoint, c.nodeToken, body, &result); err != nil {
		return nil, fmt.Errorf("report traffic: %w", err)
	}
	return &result, nil
}

// Offline announces a graceful shutdown. The broker marks the node offline
// and settles every session it was hosting.
func (c *Client) Offline(ctx context.Context) (*OfflineResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agent/offline", c.baseURL)

	var result OfflineResult
	if err := c.doRequest(ctx, http.MethodPost, endpoint, c.nodeToken, nil, &result); err != nil {
		return nil, fmt.Errorf("offline: %w", err)
	}
	return &result, nil
}

// doRequest performs an HTTP request and decodes the response envelope.
func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && apiResp.Error != nil {
			return fmt.Errorf("api error: status=%d message=%s", resp.StatusCode, apiResp.Error.Message)
		}
		return fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	if result == nil {
		return nil
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !apiResp.Success {
		return fmt.Errorf("api error: %s", apiResp.Message)
	}

	if apiResp.Data == nil {
		return nil
	}

	// Re-marshal and unmarshal to convert Data to the target type
	dataBytes, err := json.Marshal(apiResp.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if err := json.Unmarshal(dataBytes, result); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	return nil
}
