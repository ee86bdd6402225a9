package webhook

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/x402gate/x402gate/facilitator"
)

// Gate is one payment-gated webhook endpoint. It runs the stages in strict
// order per request: admission, requirements, verification, settlement,
// capture, delivery; a rejection at any stage short-circuits the rest.
// Requests share nothing but the read-only configuration, so any number can
// run concurrently.
type Gate struct {
	config      *Config
	facilitator facilitator.Interface
	sink        Sink
	responder   responder
	logger      *slog.Logger
	mode        ExecutionMode
}

// Option customizes a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithFacilitator replaces the facilitator client, e.g. with a fake in tests.
func WithFacilitator(f facilitator.Interface) Option {
	return func(g *Gate) { g.facilitator = f }
}

// WithExecutionMode marks forwarded records as test or production
// invocations. Defaults to production.
func WithExecutionMode(mode ExecutionMode) Option {
	return func(g *Gate) { g.mode = mode }
}

// New validates the configuration and builds a gate delivering admitted
// requests to sink. Configuration problems that can be detected without a
// request (responder wiring, bad expression, unknown modes) fail here, before
// the endpoint ever serves.
func New(config *Config, sink Sink, opts ...Option) (*Gate, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("webhook config: %w", err)
	}

	g := &Gate{
		config:    config,
		sink:      sink,
		responder: responderFor(config.ResponseMode),
		logger:    slog.Default(),
		mode:      ExecutionModeProduction,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.facilitator == nil && config.FacilitatorURL != "" {
		client := facilitator.NewClient(config.FacilitatorURL)
		client.Authorization = config.FacilitatorAuthorization
		g.facilitator = client
	}
	if g.facilitator == nil && !config.PaymentWaived() {
		return nil, fmt.Errorf("webhook config: payment enabled but no facilitator configured")
	}

	return g, nil
}

// Config returns the gate's validated configuration.
func (g *Gate) Config() *Config {
	return g.config
}

// ServeHTTP implements http.Handler.
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cw := &commitWriter{ResponseWriter: w}

	if !g.config.AcceptsMethod(r.Method) {
		writePlain(cw, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s is not allowed", r.Method))
		return
	}

	if !g.admit(cw, r) {
		return
	}

	var meta *PaymentMeta
	if !g.config.PaymentWaived() {
		requirement, err := g.buildRequirements(r)
		if err != nil {
			g.logger.Error("payment requirements misconfigured", "error", err)
			writeConfigError(cw, err.Error())
			return
		}

		verified, ok := g.verifyPayment(cw, r, requirement)
		if !ok {
			return
		}

		meta, ok = g.settle(cw, r, verified)
		if !ok {
			return
		}
	}

	record, err := g.capture(r)
	if err != nil {
		g.logger.Error("request capture failed", "error", err)
		writePlain(cw, http.StatusInternalServerError, "Failed to process request body")
		return
	}

	if meta != nil {
		record.Payment = meta
		if g.config.IncludePaymentDetails {
			record.Body["payment"] = Sanitize(meta)
		}
	}

	g.responder.respond(g, cw, r, record)
}
