package webhook

import (
	"fmt"
	"net/http"

	"github.com/x402gate/x402gate"
	"github.com/x402gate/x402gate/encoding"
)

// parsePayment decodes the X-PAYMENT header into a payment payload. Invalid
// encodings never produce a payload.
func parsePayment(headerValue string) (x402gate.PaymentPayload, error) {
	payment, err := encoding.DecodePayment(headerValue)
	if err != nil {
		return x402gate.PaymentPayload{}, fmt.Errorf("%w: %v", x402gate.ErrMalformedHeader, err)
	}
	if payment.X402Version != 1 {
		return x402gate.PaymentPayload{}, x402gate.ErrUnsupportedVersion
	}
	if payment.Scheme != "exact" {
		return x402gate.PaymentPayload{}, fmt.Errorf("%w: %q", x402gate.ErrUnsupportedScheme, payment.Scheme)
	}
	return payment, nil
}

// verifyPayment runs the x402 handshake up to a verified payment. Every
// failure is terminal and answered with 402 plus the offer re-attached so the
// client can construct a new payment and retry; a facilitator outage is a
// payment failure from the client's point of view, not a server failure.
// Returns nil after writing the response when the request must not proceed.
func (g *Gate) verifyPayment(w http.ResponseWriter, r *http.Request, requirement x402gate.PaymentRequirement) (*verifiedPayment, bool) {
	accepts := []x402gate.PaymentRequirement{requirement}

	headerValue := r.Header.Get("X-PAYMENT")
	if headerValue == "" {
		g.logger.Info("no payment header provided", "path", r.URL.Path)
		writePaymentRequired(w, "X-PAYMENT header is required", accepts, "")
		return nil, false
	}

	payment, err := parsePayment(headerValue)
	if err != nil {
		g.logger.Warn("invalid payment header", "error", err)
		writePaymentRequired(w, err.Error(), accepts, "")
		return nil, false
	}

	if payment.Network != requirement.Network {
		g.logger.Warn("payment network mismatch", "got", payment.Network, "want", requirement.Network)
		writePaymentRequired(w, fmt.Sprintf("payment network %q does not match required network %q", payment.Network, requirement.Network), accepts, "")
		return nil, false
	}

	g.logger.Info("verifying payment", "scheme", payment.Scheme, "network", payment.Network)
	verifyResp, err := g.facilitator.Verify(r.Context(), payment, requirement)
	if err != nil {
		g.logger.Error("facilitator verification failed", "error", err)
		writePaymentRequired(w, err.Error(), accepts, "")
		return nil, false
	}

	if !verifyResp.IsValid {
		g.logger.Warn("payment verification failed", "reason", verifyResp.InvalidReason)
		writePaymentRequired(w, verifyResp.InvalidReason, accepts, verifyResp.Payer)
		return nil, false
	}

	payer := verifyResp.Payer
	if payer == "" {
		payer = payerFromPayload(payment, g.logger)
	}
	g.logger.Info("payment verified", "payer", payer)

	return &verifiedPayment{
		Payload:     payment,
		Requirement: requirement,
		Payer:       payer,
	}, true
}

// verifiedPayment is the outcome of a successful verification, consumed by
// the settlement engine.
type verifiedPayment struct {
	Payload     x402gate.PaymentPayload
	Requirement x402gate.PaymentRequirement
	Payer       string
}
