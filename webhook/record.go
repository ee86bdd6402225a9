package webhook

import (
	"context"
	"net/http"
	"time"
)

// ExecutionMode distinguishes test invocations from production traffic.
type ExecutionMode string

const (
	ExecutionModeTest       ExecutionMode = "test"
	ExecutionModeProduction ExecutionMode = "production"
)

// BinaryAttachment is one captured binary body or uploaded file.
type BinaryAttachment struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
	Size     int64  `json:"size"`
}

// PaymentMeta is the payment provenance merged into the forwarded record when
// payment was required and not waived.
type PaymentMeta struct {
	Verified       bool       `json:"verified"`
	Settled        bool       `json:"settled"`
	Network        string     `json:"network"`
	Price          string     `json:"price"`
	PayTo          string     `json:"payTo"`
	Payer          string     `json:"payer,omitempty"`
	Transaction    string     `json:"transaction,omitempty"`
	SettlementMode string     `json:"settlementMode"`
	VerifiedAt     time.Time  `json:"verifiedAt"`
	SettledAt      *time.Time `json:"settledAt,omitempty"`
}

// RequestRecord is the canonical capture of one inbound request, handed to
// the downstream sink. It lives exactly as long as the request.
type RequestRecord struct {
	ExecutionID   string                      `json:"executionId"`
	ExecutionMode ExecutionMode               `json:"executionMode"`
	Method        string                      `json:"method"`
	WebhookURL    string                      `json:"webhookUrl"`
	Headers       map[string]string           `json:"headers"`
	Params        map[string]string           `json:"params"`
	Query         map[string]string           `json:"query"`
	Body          map[string]any              `json:"body"`
	Binary        map[string]BinaryAttachment `json:"binary,omitempty"`
	Payment       *PaymentMeta                `json:"payment,omitempty"`
}

// Delivery is what the gate hands to the downstream sink. For deferred and
// streaming response modes it carries the response writer; the sink then owns
// producing the response through it.
type Delivery struct {
	Record *RequestRecord

	// Writer is non-nil for responseNode and streaming modes only.
	Writer http.ResponseWriter

	// Flush is non-nil in streaming mode; the sink calls it after each chunk.
	Flush func()
}

// Sink is the boundary to the downstream workflow. The returned value is used
// as the response body in lastNode mode and ignored otherwise.
type Sink interface {
	Deliver(ctx context.Context, d *Delivery) (any, error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, d *Delivery) (any, error)

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, d *Delivery) (any, error) {
	return f(ctx, d)
}
