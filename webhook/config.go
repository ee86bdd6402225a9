// Package webhook implements the x402 payment-gated webhook endpoint: request
// admission, payment requirements negotiation, verification, settlement,
// request capture and response delivery.
package webhook

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/x402gate/x402gate"
)

// AuthMode selects how inbound requests authenticate before any payment work.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basicAuth"
	AuthHeader AuthMode = "headerAuth"
	AuthJWT    AuthMode = "jwtAuth"
)

// SettlementMode selects when settlement happens relative to the response.
type SettlementMode string

const (
	// SettleSync settles before the response is committed; failure rejects
	// the request.
	SettleSync SettlementMode = "sync"

	// SettleAsync admits the request immediately after verification and
	// settles in a detached background task.
	SettleAsync SettlementMode = "async"
)

// ResponseMode selects how the admitted request is answered.
type ResponseMode string

const (
	// RespondImmediately writes the configured response as soon as the
	// request is admitted and forwarded.
	RespondImmediately ResponseMode = "onReceived"

	// RespondWithLastNode answers with whatever the downstream sink returns.
	RespondWithLastNode ResponseMode = "lastNode"

	// RespondWithNode defers the response to an explicitly connected
	// downstream responder; the gate writes nothing itself.
	RespondWithNode ResponseMode = "responseNode"

	// RespondStreaming commits chunked response headers immediately and lets
	// the downstream sink produce the body incrementally.
	RespondStreaming ResponseMode = "streaming"
)

// ResponseData selects what an immediate response carries as its body.
type ResponseData string

const (
	ResponseDataFirstEntry ResponseData = "firstEntryJson"
	ResponseDataAllEntries ResponseData = "allEntries"
	ResponseDataNone       ResponseData = "noData"
)

// AuthConfig holds the credentials for the configured auth mode. Missing
// credential data for an enabled mode is a request-time configuration error.
type AuthConfig struct {
	Mode        AuthMode `mapstructure:"mode"`
	User        string   `mapstructure:"user"`
	Password    string   `mapstructure:"password"`
	HeaderName  string   `mapstructure:"header_name"`
	HeaderValue string   `mapstructure:"header_value"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
}

// Config is the per-endpoint configuration. It is loaded once at deployment,
// validated, and read-only during request handling.
type Config struct {
	// Methods lists the accepted HTTP methods (default POST).
	Methods []string `mapstructure:"methods"`

	// Path is the route pattern, chi-style dynamic segments allowed
	// (e.g. "/hooks/{id}").
	Path string `mapstructure:"path"`

	// Auth configures request authentication.
	Auth AuthConfig `mapstructure:"auth"`

	// FacilitatorURL is the x402 facilitator endpoint.
	FacilitatorURL string `mapstructure:"facilitator_url"`

	// FacilitatorAuthorization is an optional Authorization header value for
	// the facilitator.
	FacilitatorAuthorization string `mapstructure:"facilitator_authorization"`

	// PayTo is the payment recipient address.
	PayTo string `mapstructure:"pay_to"`

	// Price is the human price string, optionally "$"-prefixed ("$0.01").
	// A zero price waives payment entirely.
	Price string `mapstructure:"price"`

	// Network is the x402 network identifier (e.g. "base-sepolia").
	Network string `mapstructure:"network"`

	// RequirePayment gates the endpoint behind x402 when true.
	RequirePayment bool `mapstructure:"require_payment"`

	// SettlementMode selects sync or async settlement (default sync).
	SettlementMode SettlementMode `mapstructure:"settlement_mode"`

	// ResponseMode selects the response delivery strategy (default onReceived).
	ResponseMode ResponseMode `mapstructure:"response_mode"`

	// HasResponder signals that a downstream responder is connected. Required
	// for responseNode mode, rejected for the other modes.
	HasResponder bool `mapstructure:"has_responder"`

	// Description is the human-readable payment description.
	Description string `mapstructure:"description"`

	// MimeType is the MIME type advertised in payment requirements.
	MimeType string `mapstructure:"mime_type"`

	// MaxTimeoutSeconds is the payment authorization validity window.
	MaxTimeoutSeconds int `mapstructure:"max_timeout_seconds"`

	// IncludePaymentDetails merges payment metadata into the forwarded body.
	IncludePaymentDetails bool `mapstructure:"include_payment_details"`

	// IPAllowlist is a comma-separated list of addresses and CIDR ranges.
	// Empty means no IP filtering.
	IPAllowlist string `mapstructure:"ip_allowlist"`

	// BotFilter rejects known crawler user agents when true.
	BotFilter bool `mapstructure:"bot_filter"`

	// RawBody captures the request body as a single binary attachment.
	RawBody bool `mapstructure:"raw_body"`

	// BinaryPropertyName names the attachment used in raw-body mode
	// (default "data").
	BinaryPropertyName string `mapstructure:"binary_property_name"`

	// ResponseHeaders are extra headers set on immediate responses.
	ResponseHeaders map[string]string `mapstructure:"response_headers"`

	// ResponseContentType overrides the Content-Type of immediate responses.
	ResponseContentType string `mapstructure:"response_content_type"`

	// ResponseCode is the status of immediate responses (default 200).
	ResponseCode int `mapstructure:"response_code"`

	// ResponseData selects the immediate response body policy.
	ResponseData ResponseData `mapstructure:"response_data"`

	// ResponseExpression, when set, produces the immediate response body by
	// evaluating an expression against the captured record. Compiled at
	// validation time.
	ResponseExpression string `mapstructure:"response_expression"`

	// TempDir is the staging directory for binary capture. Empty means the
	// system temp directory.
	TempDir string `mapstructure:"temp_dir"`

	responseProgram *vm.Program
}

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// Validate checks the configuration, applies defaults and compiles the
// response expression. It must be called once before the config serves
// requests; configuration errors here fail the deployment, not a request.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path: cannot be empty")
	}
	if len(c.Methods) == 0 {
		c.Methods = []string{http.MethodPost}
	}
	for i, m := range c.Methods {
		upper := strings.ToUpper(m)
		if !validMethods[upper] {
			return fmt.Errorf("methods: unsupported HTTP method %q", m)
		}
		c.Methods[i] = upper
	}

	switch c.Auth.Mode {
	case "", AuthNone:
		c.Auth.Mode = AuthNone
	case AuthBasic, AuthHeader, AuthJWT:
	default:
		return fmt.Errorf("auth.mode: unsupported mode %q", c.Auth.Mode)
	}

	switch c.SettlementMode {
	case "":
		c.SettlementMode = SettleSync
	case SettleSync, SettleAsync:
	default:
		return fmt.Errorf("settlement_mode: unsupported mode %q", c.SettlementMode)
	}

	switch c.ResponseMode {
	case "":
		c.ResponseMode = RespondImmediately
	case RespondImmediately, RespondWithLastNode, RespondWithNode, RespondStreaming:
	default:
		return fmt.Errorf("response_mode: unsupported mode %q", c.ResponseMode)
	}

	// Responder wiring mismatches surface at deployment, never at request time.
	if c.ResponseMode == RespondWithNode && !c.HasResponder {
		return fmt.Errorf("response_mode: %q requires a connected responder", RespondWithNode)
	}
	if c.ResponseMode != RespondWithNode && c.HasResponder {
		return fmt.Errorf("response_mode: a responder is connected but mode is %q", c.ResponseMode)
	}

	switch c.ResponseData {
	case "":
		c.ResponseData = ResponseDataFirstEntry
	case ResponseDataFirstEntry, ResponseDataAllEntries, ResponseDataNone:
	default:
		return fmt.Errorf("response_data: unsupported policy %q", c.ResponseData)
	}

	if c.ResponseCode == 0 {
		c.ResponseCode = http.StatusOK
	}
	if c.ResponseCode < 100 || c.ResponseCode > 599 {
		return fmt.Errorf("response_code: %d is not a valid HTTP status", c.ResponseCode)
	}

	if c.RequirePayment && !x402gate.IsZeroPrice(c.Price) {
		if c.FacilitatorURL == "" {
			return fmt.Errorf("facilitator_url: required when payment is enabled")
		}
		if c.PayTo == "" {
			return fmt.Errorf("pay_to: required when payment is enabled")
		}
	}

	if c.MimeType == "" {
		c.MimeType = "application/json"
	}
	if c.MaxTimeoutSeconds <= 0 {
		c.MaxTimeoutSeconds = 300
	}
	if c.BinaryPropertyName == "" {
		c.BinaryPropertyName = "data"
	}

	if c.ResponseExpression != "" {
		prog, err := expr.Compile(c.ResponseExpression)
		if err != nil {
			return fmt.Errorf("response_expression: %w", err)
		}
		c.responseProgram = prog
	}

	return nil
}

// AcceptsMethod reports whether the configured endpoint accepts the method.
func (c *Config) AcceptsMethod(method string) bool {
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// PaymentWaived reports whether the gate is a no-op for this configuration:
// payment disabled, or a zero price.
func (c *Config) PaymentWaived() bool {
	return !c.RequirePayment || x402gate.IsZeroPrice(c.Price)
}
