// Package x402gate provides the protocol types, network registry and amount
// handling for the x402 payment-gated webhook gateway. The gate itself lives
// in the webhook package; facilitator communication lives in facilitator.
package x402gate

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkType represents the blockchain virtual machine type.
type NetworkType int

const (
	// NetworkTypeUnknown represents an unrecognized network.
	NetworkTypeUnknown NetworkType = iota
	// NetworkTypeEVM represents Ethereum Virtual Machine chains.
	NetworkTypeEVM
	// NetworkTypeSVM represents Solana Virtual Machine chains.
	NetworkTypeSVM
)

// ChainConfig contains chain-specific configuration for USDC payments.
type ChainConfig struct {
	// NetworkID is the x402 protocol network identifier (e.g., "base", "solana").
	NetworkID string

	// Type is the virtual machine family of the chain.
	Type NetworkType

	// USDCAddress is the official Circle USDC contract address or mint address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals int

	// EIP712Name is the token's EIP-712 domain name (empty for non-EVM chains).
	EIP712Name string

	// EIP712Version is the token's EIP-712 domain version (empty for non-EVM chains).
	EIP712Version string
}

// Mainnet chain configurations.
var (
	// BaseMainnet is the configuration for Base mainnet.
	BaseMainnet = ChainConfig{
		NetworkID:     "base",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	}

	// PolygonMainnet is the configuration for Polygon PoS mainnet.
	PolygonMainnet = ChainConfig{
		NetworkID:     "polygon",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	}

	// AvalancheMainnet is the configuration for Avalanche C-Chain mainnet.
	AvalancheMainnet = ChainConfig{
		NetworkID:     "avalanche",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	}

	// SolanaMainnet is the configuration for Solana mainnet.
	SolanaMainnet = ChainConfig{
		NetworkID:   "solana",
		Type:        NetworkTypeSVM,
		USDCAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals:    6,
	}
)

// Testnet chain configurations.
var (
	// BaseSepolia is the configuration for Base Sepolia testnet.
	BaseSepolia = ChainConfig{
		NetworkID:     "base-sepolia",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:      6,
		EIP712Name:    "USDC",
		EIP712Version: "2",
	}

	// PolygonAmoy is the configuration for Polygon Amoy testnet.
	PolygonAmoy = ChainConfig{
		NetworkID:     "polygon-amoy",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Decimals:      6,
		EIP712Name:    "USDC",
		EIP712Version: "2",
	}

	// AvalancheFuji is the configuration for Avalanche Fuji testnet.
	AvalancheFuji = ChainConfig{
		NetworkID:     "avalanche-fuji",
		Type:          NetworkTypeEVM,
		USDCAddress:   "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	}

	// SolanaDevnet is the configuration for Solana devnet.
	SolanaDevnet = ChainConfig{
		NetworkID:   "solana-devnet",
		Type:        NetworkTypeSVM,
		USDCAddress: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals:    6,
	}
)

// chains indexes every supported chain by its network identifier.
var chains = map[string]ChainConfig{
	BaseMainnet.NetworkID:      BaseMainnet,
	BaseSepolia.NetworkID:      BaseSepolia,
	PolygonMainnet.NetworkID:   PolygonMainnet,
	PolygonAmoy.NetworkID:      PolygonAmoy,
	AvalancheMainnet.NetworkID: AvalancheMainnet,
	AvalancheFuji.NetworkID:    AvalancheFuji,
	SolanaMainnet.NetworkID:    SolanaMainnet,
	SolanaDevnet.NetworkID:     SolanaDevnet,
}

// ChainByNetwork returns the chain configuration for a network identifier.
// Returns ErrUnsupportedNetwork for networks the gateway does not know.
func ChainByNetwork(networkID string) (ChainConfig, error) {
	if networkID == "" {
		return ChainConfig{}, fmt.Errorf("%w: network identifier is empty", ErrUnsupportedNetwork)
	}
	chain, ok := chains[networkID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, networkID)
	}
	return chain, nil
}

// SupportedNetworks returns the identifiers of every supported network.
func SupportedNetworks() []string {
	ids := make([]string, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	return ids
}

// solanaAddressRegex matches Solana base58 addresses (32-44 chars, base58 charset).
var solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidateAddress validates that an address matches the network's address
// format. EVM addresses are checked with go-ethereum's hex-address rules,
// Solana addresses against the base58 charset and length.
func ValidateAddress(networkID, address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	chain, err := ChainByNetwork(networkID)
	if err != nil {
		return err
	}

	switch chain.Type {
	case NetworkTypeEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("address %q is not a valid EVM address for network %q", address, networkID)
		}
	case NetworkTypeSVM:
		if !solanaAddressRegex.MatchString(address) {
			return fmt.Errorf("address %q is not a valid base58 address for network %q", address, networkID)
		}
	}

	return nil
}
