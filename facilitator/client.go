package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/x402gate/x402gate"
	"github.com/x402gate/x402gate/retry"
)

// Default per-operation timeouts. Settlement waits on a blockchain
// transaction and needs far more headroom than verification.
const (
	DefaultVerifyTimeout = 5 * time.Second
	DefaultSettleTimeout = 60 * time.Second
)

// Client is an HTTP client for x402 facilitator services.
type Client struct {
	// BaseURL is the facilitator endpoint, without a trailing slash.
	BaseURL string

	// HTTPClient is the underlying client. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Authorization, when set, is sent as the Authorization header on every
	// request (e.g. "Bearer api-key").
	Authorization string

	// VerifyTimeout bounds verify and supported calls. Zero means
	// DefaultVerifyTimeout.
	VerifyTimeout time.Duration

	// SettleTimeout bounds settle calls. Zero means DefaultSettleTimeout.
	SettleTimeout time.Duration
}

// NewClient creates a facilitator client with default timeouts.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{},
		VerifyTimeout: DefaultVerifyTimeout,
		SettleTimeout: DefaultSettleTimeout,
	}
}

// request is the payload sent to the facilitator verify and settle endpoints.
type request struct {
	X402Version         int                         `json:"x402Version"`
	PaymentPayload      x402gate.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402gate.PaymentRequirement `json:"paymentRequirements"`
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) verifyTimeout() time.Duration {
	if c.VerifyTimeout > 0 {
		return c.VerifyTimeout
	}
	return DefaultVerifyTimeout
}

func (c *Client) settleTimeout() time.Duration {
	if c.SettleTimeout > 0 {
		return c.SettleTimeout
	}
	return DefaultSettleTimeout
}

// post sends a JSON POST to path and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any, failure error) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Authorization != "" {
		httpReq.Header.Set("Authorization", c.Authorization)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", x402gate.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", failure, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Verify verifies a payment authorization without executing the transaction.
func (c *Client) Verify(ctx context.Context, payment x402gate.PaymentPayload, requirement x402gate.PaymentRequirement) (*VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout())
	defer cancel()

	req := request{
		X402Version:         1,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}

	var verifyResp VerifyResponse
	if err := c.post(ctx, "/verify", req, &verifyResp, x402gate.ErrVerificationFailed); err != nil {
		return nil, err
	}
	return &verifyResp, nil
}

// Settle executes a verified payment on the blockchain.
func (c *Client) Settle(ctx context.Context, payment x402gate.PaymentPayload, requirement x402gate.PaymentRequirement) (*x402gate.SettlementResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settleTimeout())
	defer cancel()

	req := request{
		X402Version:         1,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}

	var settlementResp x402gate.SettlementResponse
	if err := c.post(ctx, "/settle", req, &settlementResp, x402gate.ErrSettlementFailed); err != nil {
		return nil, err
	}
	return &settlementResp, nil
}

// Supported queries the facilitator for supported payment types.
func (c *Client) Supported(ctx context.Context) (*SupportedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Authorization != "" {
		httpReq.Header.Set("Authorization", c.Authorization)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402gate.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supported endpoint failed: status %d", resp.StatusCode)
	}

	var supportedResp SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&supportedResp); err != nil {
		return nil, fmt.Errorf("failed to decode supported response: %w", err)
	}
	return &supportedResp, nil
}

// EnrichRequirements fetches supported payment types from the facilitator and
// merges network-specific extra data (like feePayer for SVM chains) into the
// provided requirements. User-specified values take precedence.
func (c *Client) EnrichRequirements(ctx context.Context, requirements []x402gate.PaymentRequirement) ([]x402gate.PaymentRequirement, error) {
	supported, err := retry.Do(ctx, retry.DefaultPolicy, func(err error) bool {
		return errors.Is(err, x402gate.ErrFacilitatorUnavailable)
	}, func(ctx context.Context) (*SupportedResponse, error) {
		return c.Supported(ctx)
	})
	if err != nil {
		return requirements, fmt.Errorf("failed to fetch supported payment types: %w", err)
	}

	supportedMap := make(map[string]SupportedKind)
	for _, kind := range supported.Kinds {
		supportedMap[kind.Network+"-"+kind.Scheme] = kind
	}

	enriched := make([]x402gate.PaymentRequirement, len(requirements))
	for i, req := range requirements {
		enriched[i] = req
		kind, ok := supportedMap[req.Network+"-"+req.Scheme]
		if !ok || kind.Extra == nil {
			continue
		}
		if enriched[i].Extra == nil {
			enriched[i].Extra = make(map[string]interface{})
		}
		for k, v := range kind.Extra {
			if _, exists := enriched[i].Extra[k]; !exists {
				enriched[i].Extra[k] = v
			}
		}
	}

	return enriched, nil
}
