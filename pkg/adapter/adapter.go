// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package adapter provides the pluggable wallet signer variants:
// - local-key: a locally held secp256k1 private key
// - privy, coinbase-cdp, crossmint: managed custody providers
// - browser: address only, signing happens in a connected browser wallet
//
// All variants satisfy the same Adapter contract; the broker and the
// wallet manager never care which one they hold.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/clawlet/pkg/chain"
	"github.com/luxfi/clawlet/pkg/models"
)

var (
	ErrNotInitialized     = errors.New("wallet not initialized, provision it first")
	ErrMustSignClientSide = errors.New("browser wallets must sign client-side")
	ErrSDKNotInstalled    = errors.New("provider SDK not installed")
	ErrUnknownAdapterType = errors.New("unknown adapter type")
	ErrMissingAddress     = errors.New("browser adapter requires an address")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// Adapter is the uniform wallet contract: provision once, then report an
// address, query USDC balance, and produce EIP-712 signatures.
type Adapter interface {
	// Provision creates or claims the underlying wallet. Idempotent for
	// an already provisioned adapter instance.
	Provision(ctx context.Context) (string, error)

	// Address returns the wallet address, or ErrNotInitialized.
	Address() (string, error)

	IsInitialized() bool

	// SignsExternally reports whether signatures are produced outside
	// this process (two-phase payment flow).
	SignsExternally() bool

	// Balance returns the wallet's USDC balance on the given CAIP-2
	// network as a decimal string.
	Balance(ctx context.Context, caip2 string) (string, error)

	// SignTypedData produces a 65-byte EIP-712 signature, 0x-prefixed hex.
	SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error)

	// Serialize round-trips the adapter back to its persisted config.
	Serialize() models.AdapterConfig
}

// New constructs the adapter variant tagged in cfg.
func New(cfg models.AdapterConfig) (Adapter, error) {
	switch cfg.Type {
	case models.AdapterLocalKey:
		return newLocalKey(cfg)
	case models.AdapterBrowser:
		return newBrowser(cfg)
	case models.AdapterPrivy, models.AdapterCoinbaseCDP, models.AdapterCrossmint:
		return newManaged(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapterType, cfg.Type)
	}
}

// usdcBalance resolves the adapter address and reads its USDC balance.
func usdcBalance(ctx context.Context, a Adapter, caip2 string) (string, error) {
	addr, err := a.Address()
	if err != nil {
		return "", err
	}
	client, err := chain.NewClient(caip2)
	if err != nil {
		return "", err
	}
	return client.USDCBalance(ctx, addr)
}

// ProviderClient is the minimal surface a managed custody SDK must
// expose. SDK wrapper modules register a factory at init time, the same
// way database/sql drivers do; an unregistered provider surfaces as
// ErrSDKNotInstalled on first use.
type ProviderClient interface {
	Provision(ctx context.Context, cfg models.AdapterConfig) (walletID, address string, err error)
	SignTypedData(ctx context.Context, cfg models.AdapterConfig, td apitypes.TypedData) (string, error)
}

// ProviderFactory lazily constructs a provider client.
type ProviderFactory func() (ProviderClient, error)

var (
	providersMu sync.RWMutex
	providers   = map[models.AdapterType]ProviderFactory{}
)

// RegisterProvider installs the SDK factory for a managed adapter kind.
func RegisterProvider(kind models.AdapterType, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[kind] = factory
}

func lookupProvider(kind models.AdapterType) (ProviderClient, error) {
	providersMu.RLock()
	factory, ok := providers[kind]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSDKNotInstalled, kind)
	}
	client, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSDKNotInstalled, kind, err)
	}
	return client, nil
}
