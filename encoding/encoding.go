// Package encoding provides the wire codecs for x402 payment headers.
// X-PAYMENT and X-PAYMENT-RESPONSE both carry base64-encoded JSON.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/x402gate/x402gate"
)

// EncodePayment converts a PaymentPayload to a base64-encoded JSON string
// suitable for an X-PAYMENT header.
func EncodePayment(payment x402gate.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts an X-PAYMENT header value to a PaymentPayload.
// Invalid base64 or JSON never produces a payload.
func DecodePayment(encoded string) (x402gate.PaymentPayload, error) {
	var payment x402gate.PaymentPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payment, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &payment); err != nil {
		return payment, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	return payment, nil
}

// EncodeSettlement converts a SettlementResponse to a base64-encoded JSON
// string suitable for an X-PAYMENT-RESPONSE header.
func EncodeSettlement(settlement x402gate.SettlementResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts an X-PAYMENT-RESPONSE header value to a
// SettlementResponse.
func DecodeSettlement(encoded string) (x402gate.SettlementResponse, error) {
	var settlement x402gate.SettlementResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return settlement, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}

	return settlement, nil
}
