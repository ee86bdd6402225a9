package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/x402gate/x402gate"
	"github.com/x402gate/x402gate/encoding"
	"github.com/x402gate/x402gate/facilitator"
)

// settle runs the settlement engine for a verified payment and fills in the
// payment metadata for the forwarded record.
//
// Sync mode blocks the response on settlement: success attaches the
// X-PAYMENT-RESPONSE header, failure rejects the whole request with 402. A
// verified-but-unsettled payment never admits the request.
//
// Async mode admits the request immediately and detaches settlement into a
// background task whose outcome is only logged; it can never alter the
// response already owed to the client.
func (g *Gate) settle(w http.ResponseWriter, r *http.Request, vp *verifiedPayment) (*PaymentMeta, bool) {
	meta := &PaymentMeta{
		Verified:       true,
		Network:        vp.Requirement.Network,
		Price:          g.config.Price,
		PayTo:          vp.Requirement.PayTo,
		Payer:          vp.Payer,
		SettlementMode: string(g.config.SettlementMode),
		VerifiedAt:     time.Now().UTC(),
	}

	if g.config.SettlementMode == SettleAsync {
		g.spawnSettlement(vp)
		return meta, true
	}

	g.logger.Info("settling payment", "payer", vp.Payer)
	settlement, err := g.facilitator.Settle(r.Context(), vp.Payload, vp.Requirement)
	if err != nil {
		g.logger.Error("settlement failed", "error", err)
		writePaymentRequired(w, err.Error(), []x402gate.PaymentRequirement{vp.Requirement}, vp.Payer)
		return nil, false
	}
	if !settlement.Success {
		g.logger.Warn("settlement unsuccessful", "reason", settlement.ErrorReason)
		writePaymentRequired(w, settlement.ErrorReason, []x402gate.PaymentRequirement{vp.Requirement}, vp.Payer)
		return nil, false
	}

	g.logger.Info("payment settled", "transaction", settlement.Transaction)

	encoded, err := encoding.EncodeSettlement(*settlement)
	if err != nil {
		// The payment went through; a missing receipt header is not worth
		// failing the request over.
		g.logger.Warn("failed to encode settlement header", "error", err)
	} else {
		w.Header().Set("X-PAYMENT-RESPONSE", encoded)
	}

	now := time.Now().UTC()
	meta.Settled = true
	meta.SettledAt = &now
	meta.Transaction = settlement.Transaction
	if settlement.Payer != "" {
		meta.Payer = settlement.Payer
	}
	return meta, true
}

// spawnSettlement fires settlement as a detached background task with its own
// error boundary. Failures are logged and nothing else; a panic here must
// never reach the request-handling goroutine.
func (g *Gate) spawnSettlement(vp *verifiedPayment) {
	logger := g.logger
	fac := g.facilitator
	timeout := settleTimeout(fac)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("async settlement panicked", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		settlement, err := fac.Settle(ctx, vp.Payload, vp.Requirement)
		switch {
		case err != nil:
			logger.Error("async settlement failed", "payer", vp.Payer, "error", err)
		case !settlement.Success:
			logger.Error("async settlement unsuccessful", "payer", vp.Payer, "reason", settlement.ErrorReason)
		default:
			logger.Info("async settlement complete", "payer", vp.Payer, "transaction", settlement.Transaction)
		}
	}()
}

// settleTimeout bounds the detached settlement task. The facilitator client
// enforces its own per-call timeout; this is the outer bound for fakes and
// alternative implementations.
func settleTimeout(f facilitator.Interface) time.Duration {
	if c, ok := f.(*facilitator.Client); ok && c.SettleTimeout > 0 {
		return c.SettleTimeout + 5*time.Second
	}
	return facilitator.DefaultSettleTimeout + 5*time.Second
}
