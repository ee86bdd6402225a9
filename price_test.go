package x402gate

import (
	"errors"
	"testing"
)

func TestIsZeroPrice(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"$0", true},
		{"0", true},
		{"0.00", true},
		{"$0.000", true},
		{"$00.0", true},
		{" $0 ", true},
		{"$0.01", false},
		{"0.50", false},
		{"$1", false},
		{"", false},
		{"$", false},
		{"free", false},
	}

	for _, tt := range tests {
		if got := IsZeroPrice(tt.price); got != tt.want {
			t.Errorf("IsZeroPrice(%q) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		price   string
		want    string
		wantErr bool
	}{
		{"$0.50", "500000", false},
		{"0.50", "500000", false},
		{"$0.01", "10000", false},
		{"$0.1", "100000", false},
		{"$1", "1000000", false},
		{"1.5", "1500000", false},
		{"$0", "0", false},
		{"$0.0000001", "", true}, // more precision than 6 decimals
		{"-1", "", true},
		{"abc", "", true},
		{"$", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePrice(tt.price, BaseSepolia)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q) expected error, got %v", tt.price, got)
			} else if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParsePrice(%q) error = %v, want ErrInvalidAmount", tt.price, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q) unexpected error: %v", tt.price, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParsePrice(%q) = %s, want %s", tt.price, got.String(), tt.want)
		}
	}
}

func TestAmountRoundTrip(t *testing.T) {
	amount, err := AmountToBigInt("1.5", 6)
	if err != nil {
		t.Fatalf("AmountToBigInt failed: %v", err)
	}
	if amount.String() != "1500000" {
		t.Errorf("expected 1500000, got %s", amount.String())
	}
	if got := BigIntToAmount(amount, 6); got != "1.500000" {
		t.Errorf("expected 1.500000, got %s", got)
	}
	if got := BigIntToAmount(nil, 6); got != "0" {
		t.Errorf("expected 0 for nil, got %s", got)
	}
}
