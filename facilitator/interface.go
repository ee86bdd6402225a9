// Package facilitator defines the contract with the remote x402 facilitator
// service and provides its HTTP client. The facilitator owns all blockchain
// interaction: the gateway never verifies signatures or submits transactions
// itself.
package facilitator

import (
	"context"

	"github.com/x402gate/x402gate"
)

// Interface is the facilitator contract for payment verification and
// settlement. The gate depends on this interface so tests can substitute a
// fake facilitator.
type Interface interface {
	// Verify verifies a payment authorization without executing the transaction.
	Verify(ctx context.Context, payment x402gate.PaymentPayload, requirement x402gate.PaymentRequirement) (*VerifyResponse, error)

	// Settle executes a verified payment on the blockchain.
	Settle(ctx context.Context, payment x402gate.PaymentPayload, requirement x402gate.PaymentRequirement) (*x402gate.SettlementResponse, error)

	// Supported queries the facilitator for supported payment types.
	Supported(ctx context.Context) (*SupportedResponse, error)
}

// VerifyResponse contains the payment verification result from the facilitator.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer"`
}

// SupportedKind describes a supported payment type with its configuration.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse lists all payment types supported by the facilitator.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}
