package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the external response-generation engine over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config for the engine client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type executeRequest struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
	ThreadID  string `json:"thread_id"`
}

type executeResponse struct {
	Lines []string `json:"lines"`
	Error string   `json:"error,omitempty"`
}

// NewClient creates a new engine client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Execute generates reply lines for a mention. The thread ID correlates the
// conversation inside the engine's own memory; this service never stores it.
func (c *Client) Execute(ctx context.Context, accountID, message, threadID string) ([]string, error) {
	body, err := json.Marshal(executeRequest{
		AccountID: accountID,
		Message:   message,
		ThreadID:  threadID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var out executeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("engine error: %s", out.Error)
	}
	return out.Lines, nil
}
