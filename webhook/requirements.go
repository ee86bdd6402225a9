package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/x402gate/x402gate"
)

// buildRequirements constructs the payment offer for this request from the
// endpoint configuration. It is built fresh per request so the resource URL
// is always the one actually invoked; identical configuration always yields a
// structurally identical offer.
//
// All failures here are operator misconfigurations, surfaced as 500 by the
// caller, never as 402.
func (g *Gate) buildRequirements(r *http.Request) (x402gate.PaymentRequirement, error) {
	chain, err := x402gate.ChainByNetwork(g.config.Network)
	if err != nil {
		return x402gate.PaymentRequirement{}, err
	}

	if err := x402gate.ValidateAddress(chain.NetworkID, g.config.PayTo); err != nil {
		return x402gate.PaymentRequirement{}, fmt.Errorf("pay_to: %w", err)
	}

	amount, err := x402gate.ParsePrice(g.config.Price, chain)
	if err != nil {
		return x402gate.PaymentRequirement{}, err
	}

	req := x402gate.PaymentRequirement{
		Scheme:            "exact",
		Network:           chain.NetworkID,
		MaxAmountRequired: amount.String(),
		Asset:             chain.USDCAddress,
		PayTo:             g.config.PayTo,
		Resource:          resourceURL(r),
		Description:       g.config.Description,
		MimeType:          g.config.MimeType,
		MaxTimeoutSeconds: g.config.MaxTimeoutSeconds,
	}
	if req.Description == "" {
		req.Description = "Payment required for " + r.URL.Path
	}

	// The exact scheme needs the token's EIP-712 domain for typed-data
	// signature verification on EVM chains.
	if chain.Type == x402gate.NetworkTypeEVM {
		if chain.EIP712Name == "" || chain.EIP712Version == "" {
			return x402gate.PaymentRequirement{}, fmt.Errorf("network %q has no EIP-712 domain configured for asset %s", chain.NetworkID, chain.USDCAddress)
		}
		req.Extra = map[string]interface{}{
			"name":    chain.EIP712Name,
			"version": chain.EIP712Version,
		}
	}

	// SVM offers need facilitator-side extra data (the fee payer account).
	// Enrichment failure leaves the offer as configured; the facilitator may
	// still accept it.
	if chain.Type == x402gate.NetworkTypeSVM {
		if enricher, ok := g.facilitator.(requirementEnricher); ok {
			enriched, err := enricher.EnrichRequirements(r.Context(), []x402gate.PaymentRequirement{req})
			if err != nil {
				g.logger.Warn("failed to enrich payment requirements", "network", chain.NetworkID, "error", err)
			} else if len(enriched) == 1 {
				req = enriched[0]
			}
		}
	}

	return req, nil
}

// requirementEnricher is implemented by facilitator clients that can merge
// supported-kind extra data into an offer.
type requirementEnricher interface {
	EnrichRequirements(ctx context.Context, requirements []x402gate.PaymentRequirement) ([]x402gate.PaymentRequirement, error)
}

// resourceURL rebuilds the canonical absolute URL of this webhook invocation.
func resourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.RequestURI
}
