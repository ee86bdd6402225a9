package x402gate

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// zeroPriceRegex matches prices that waive payment entirely: all-zero digits
// with an optional leading "$" and optional all-zero decimals ("$0", "0.00",
// "$0.000").
var zeroPriceRegex = regexp.MustCompile(`^\$?0+(\.0+)?$`)

// IsZeroPrice reports whether a configured price waives payment. A zero price
// disables the gate regardless of the require-payment flag.
func IsZeroPrice(price string) bool {
	return zeroPriceRegex.MatchString(strings.TrimSpace(price))
}

// ParsePrice converts a human price string (e.g. "$0.50" or "1.25") into an
// atomic token amount using the chain's token decimals. The conversion must
// be exact; prices with more precision than the token supports are rejected.
func ParsePrice(price string, chain ChainConfig) (*big.Int, error) {
	trimmed := strings.TrimSpace(price)
	trimmed = strings.TrimPrefix(trimmed, "$")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: price is empty", ErrInvalidAmount)
	}

	value, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("%w: malformed price %q", ErrInvalidAmount, price)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", ErrInvalidAmount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(chain.Decimals)), nil)
	value.Mul(value, new(big.Rat).SetInt(scale))
	if !value.IsInt() {
		return nil, fmt.Errorf("%w: price %q has more precision than %d token decimals", ErrInvalidAmount, price, chain.Decimals)
	}
	return value.Num(), nil
}
