// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

// AdapterType tags the wallet adapter variant stored in a wallet entry.
type AdapterType string

const (
	// AdapterLocalKey signs with a locally held private key.
	AdapterLocalKey AdapterType = "local-key"

	// AdapterPrivy delegates custody and signing to Privy.
	AdapterPrivy AdapterType = "privy"

	// AdapterCoinbaseCDP delegates custody and signing to Coinbase CDP.
	AdapterCoinbaseCDP AdapterType = "coinbase-cdp"

	// AdapterCrossmint delegates custody and signing to Crossmint.
	AdapterCrossmint AdapterType = "crossmint"

	// AdapterBrowser holds an address only; signing happens in a
	// connected browser wallet outside this process.
	AdapterBrowser AdapterType = "browser"
)

// AdapterConfig is the persisted configuration of a wallet adapter.
// Exactly one variant applies per wallet; fields not used by the tagged
// variant stay empty and are omitted from JSON.
type AdapterConfig struct {
	Type AdapterType `json:"type"`

	// local-key
	PrivateKey string `json:"privateKey,omitempty"`

	// privy
	AppID     string `json:"appId,omitempty"`
	AppSecret string `json:"appSecret,omitempty"`

	// coinbase-cdp
	APIKeyID     string `json:"apiKeyId,omitempty"`
	APIKeySecret string `json:"apiKeySecret,omitempty"`

	// crossmint
	APIKey string `json:"apiKey,omitempty"`

	// Managed providers record the provider-side wallet id and cache the
	// address once provisioned. The browser variant stores its address
	// here as well.
	WalletID string `json:"walletId,omitempty"`
	Address  string `json:"address,omitempty"`
}

// SpendingRules constrain what the active wallet may pay. Limits are
// decimal USDC strings; nil means unlimited. Service patterns are
// lowercase substrings matched against the paid host; an empty allowlist
// allows everything and the blocklist always wins.
type SpendingRules struct {
	MaxPerTransaction *string  `json:"maxPerTransaction"`
	DailyCap          *string  `json:"dailyCap"`
	AllowedServices   []string `json:"allowedServices"`
	BlockedServices   []string `json:"blockedServices"`
}

// DefaultRules returns the unrestricted rule set a new wallet starts with.
func DefaultRules() SpendingRules {
	return SpendingRules{
		AllowedServices: []string{},
		BlockedServices: []string{},
	}
}

// AgentIdentity announces the agent operating a wallet to paid services
// (ERC-8004 style). Name is required; everything else is optional.
type AgentIdentity struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	AgentID       string `json:"agentId,omitempty"`
	AgentRegistry string `json:"agentRegistry,omitempty"`
	MetadataURI   string `json:"metadataUri,omitempty"`
}

// WalletEntry is one wallet in the persisted document.
type WalletEntry struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	CreatedAt     string         `json:"createdAt"`
	Frozen        bool           `json:"frozen"`
	AdapterConfig AdapterConfig  `json:"adapterConfig"`
	Rules         SpendingRules  `json:"rules"`
	Transactions  []Transaction  `json:"transactions"`
	AgentIdentity *AgentIdentity `json:"agentIdentity,omitempty"`
}
