package webhook

import (
	"net/http"
	"strings"
	"testing"
)

func TestConfigValidateDefaults(t *testing.T) {
	config := &Config{Path: "/hook"}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(config.Methods) != 1 || config.Methods[0] != http.MethodPost {
		t.Errorf("expected default method POST, got %v", config.Methods)
	}
	if config.Auth.Mode != AuthNone {
		t.Errorf("expected default auth mode none, got %q", config.Auth.Mode)
	}
	if config.SettlementMode != SettleSync {
		t.Errorf("expected default settlement mode sync, got %q", config.SettlementMode)
	}
	if config.ResponseMode != RespondImmediately {
		t.Errorf("expected default response mode onReceived, got %q", config.ResponseMode)
	}
	if config.ResponseData != ResponseDataFirstEntry {
		t.Errorf("expected default response data firstEntryJson, got %q", config.ResponseData)
	}
	if config.ResponseCode != http.StatusOK {
		t.Errorf("expected default response code 200, got %d", config.ResponseCode)
	}
	if config.MimeType != "application/json" {
		t.Errorf("expected default mime type application/json, got %q", config.MimeType)
	}
	if config.MaxTimeoutSeconds != 300 {
		t.Errorf("expected default timeout 300, got %d", config.MaxTimeoutSeconds)
	}
	if config.BinaryPropertyName != "data" {
		t.Errorf("expected default binary property name data, got %q", config.BinaryPropertyName)
	}
}

func TestConfigValidateNormalizesMethods(t *testing.T) {
	config := &Config{Path: "/hook", Methods: []string{"post", "Get"}}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if config.Methods[0] != http.MethodPost || config.Methods[1] != http.MethodGet {
		t.Errorf("methods were not normalized: %v", config.Methods)
	}
	if !config.AcceptsMethod(http.MethodGet) || config.AcceptsMethod(http.MethodDelete) {
		t.Errorf("AcceptsMethod does not reflect the configured set")
	}
}

func TestConfigValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "empty path",
			config:  Config{},
			wantErr: "path",
		},
		{
			name:    "unsupported method",
			config:  Config{Path: "/hook", Methods: []string{"TRACE"}},
			wantErr: "unsupported HTTP method",
		},
		{
			name:    "unknown auth mode",
			config:  Config{Path: "/hook", Auth: AuthConfig{Mode: "oauth"}},
			wantErr: "auth.mode",
		},
		{
			name:    "unknown settlement mode",
			config:  Config{Path: "/hook", SettlementMode: "deferred"},
			wantErr: "settlement_mode",
		},
		{
			name:    "unknown response mode",
			config:  Config{Path: "/hook", ResponseMode: "firstNode"},
			wantErr: "response_mode",
		},
		{
			name:    "responseNode without responder",
			config:  Config{Path: "/hook", ResponseMode: RespondWithNode},
			wantErr: "requires a connected responder",
		},
		{
			name:    "responder without responseNode",
			config:  Config{Path: "/hook", ResponseMode: RespondImmediately, HasResponder: true},
			wantErr: "a responder is connected",
		},
		{
			name:    "unknown response data policy",
			config:  Config{Path: "/hook", ResponseData: "everything"},
			wantErr: "response_data",
		},
		{
			name:    "out of range response code",
			config:  Config{Path: "/hook", ResponseCode: 42},
			wantErr: "response_code",
		},
		{
			name:    "payment without facilitator",
			config:  Config{Path: "/hook", RequirePayment: true, Price: "$0.10", PayTo: testPayTo},
			wantErr: "facilitator_url",
		},
		{
			name:    "payment without recipient",
			config:  Config{Path: "/hook", RequirePayment: true, Price: "$0.10", FacilitatorURL: "http://facilitator.test"},
			wantErr: "pay_to",
		},
		{
			name:    "bad response expression",
			config:  Config{Path: "/hook", ResponseExpression: "body["},
			wantErr: "response_expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidateResponseNodePairing(t *testing.T) {
	config := &Config{Path: "/hook", ResponseMode: RespondWithNode, HasResponder: true}
	if err := config.Validate(); err != nil {
		t.Fatalf("responseNode with a responder must validate: %v", err)
	}
}

func TestConfigZeroPriceSkipsPaymentRequirements(t *testing.T) {
	// A zero price waives payment, so the facilitator and recipient checks
	// must not apply.
	config := &Config{Path: "/hook", RequirePayment: true, Price: "$0.00"}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !config.PaymentWaived() {
		t.Error("zero price must waive payment")
	}
}

func TestConfigPaymentWaived(t *testing.T) {
	tests := []struct {
		name           string
		requirePayment bool
		price          string
		want           bool
	}{
		{"disabled", false, "$1.00", true},
		{"zero price", true, "$0", true},
		{"enabled", true, "$0.01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{RequirePayment: tt.requirePayment, Price: tt.price}
			if got := config.PaymentWaived(); got != tt.want {
				t.Errorf("PaymentWaived() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigCompilesResponseExpression(t *testing.T) {
	config := &Config{Path: "/hook", ResponseExpression: `{"ok": true}`}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if config.responseProgram == nil {
		t.Error("response expression was not compiled")
	}
}
