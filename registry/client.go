// Package registry is the thin boundary to the external agent registry. It
// publishes webhook endpoints as discoverable agents and searches existing
// ones; ranking and discovery logic live entirely on the registry side.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/x402gate/x402gate"
	"github.com/x402gate/x402gate/retry"
)

// Agent describes one published payment-gated endpoint.
type Agent struct {
	ID          string                        `json:"id,omitempty"`
	Name        string                        `json:"name"`
	Description string                        `json:"description,omitempty"`
	URL         string                        `json:"url"`
	Accepts     []x402gate.PaymentRequirement `json:"accepts,omitempty"`
}

// Client talks to the registry HTTP API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Retry      retry.Policy
}

// NewClient creates a registry client with default retry behavior.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Retry:      retry.DefaultPolicy,
	}
}

// statusError marks responses worth retrying (5xx) apart from client errors.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("registry returned status %d", e.code)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

// Publish registers or updates an agent and returns the stored record.
func (c *Client) Publish(ctx context.Context, agent Agent) (*Agent, error) {
	return retry.Do(ctx, c.Retry, retryable, func(ctx context.Context) (*Agent, error) {
		data, err := json.Marshal(agent)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal agent: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/agents", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("registry request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, &statusError{code: resp.StatusCode}
		}

		var stored Agent
		if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
			return nil, fmt.Errorf("failed to decode registry response: %w", err)
		}
		return &stored, nil
	})
}

// Search queries the registry for agents matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]Agent, error) {
	return retry.Do(ctx, c.Retry, retryable, func(ctx context.Context) ([]Agent, error) {
		endpoint := c.BaseURL + "/agents?q=" + url.QueryEscape(query)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("registry request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode}
		}

		var agents []Agent
		if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
			return nil, fmt.Errorf("failed to decode registry response: %w", err)
		}
		return agents, nil
	})
}
