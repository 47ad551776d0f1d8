package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flatpee/flatpee-bot/internal/api"
)

// Client is the HTTP client for the bot's admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetContext gets the last window records of a conversation
func (c *Client) GetContext(ctx context.Context, conversationID string, window int) (*api.ContextResponse, error) {
	path := fmt.Sprintf("/api/conversations/%s/context", url.PathEscape(conversationID))
	if window > 0 {
		path += "?window=" + strconv.Itoa(window)
	}

	var result api.ContextResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EvaluateDecision asks the decision engine whether it would reply
func (c *Client) EvaluateDecision(ctx context.Context, req api.DecisionRequest) (*api.DecisionResponse, error) {
	var result api.DecisionResponse
	if err := c.post(ctx, "/api/decisions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
