// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package constants

const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"

	Caip2BaseMainnet = "eip155:8453"
	Caip2BaseSepolia = "eip155:84532"
)

// ChainSpec describes one supported EVM chain: where to reach it and how
// to address (and sign for) its canonical USDC deployment.
type ChainSpec struct {
	Name    string
	Caip2   string
	ChainID uint64

	USDCAddress string

	// EIP-712 domain parameters of the USDC contract. Circle ships the
	// mainnet deployment as "USD Coin" and the Sepolia one as "USDC";
	// both are on domain version 2.
	USDCDomainName    string
	USDCDomainVersion string

	RPCEndpoint string
}

// Chains is the registry of supported chains, keyed by CAIP-2 id.
var Chains = map[string]ChainSpec{
	Caip2BaseMainnet: {
		Name:              NetworkBase,
		Caip2:             Caip2BaseMainnet,
		ChainID:           8453,
		USDCAddress:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		USDCDomainName:    "USD Coin",
		USDCDomainVersion: "2",
		RPCEndpoint:       "https://mainnet.base.org",
	},
	Caip2BaseSepolia: {
		Name:              NetworkBaseSepolia,
		Caip2:             Caip2BaseSepolia,
		ChainID:           84532,
		USDCAddress:       "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDCDomainName:    "USDC",
		USDCDomainVersion: "2",
		RPCEndpoint:       "https://sepolia.base.org",
	},
}

// NetworkToCaip2 maps the persisted network name to its CAIP-2 id.
var NetworkToCaip2 = map[string]string{
	NetworkBase:        Caip2BaseMainnet,
	NetworkBaseSepolia: Caip2BaseSepolia,
}

// ChainByCaip2 looks up a chain spec, reporting whether the id is one of
// the recognized EVM chains.
func ChainByCaip2(caip2 string) (ChainSpec, bool) {
	spec, ok := Chains[caip2]
	return spec, ok
}
