// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package adapter

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/clawlet/pkg/models"
)

// Managed delegates custody and signing to a provider (Privy, Coinbase
// CDP, or Crossmint). The provider SDK is an optional dependency,
// resolved lazily through the provider registry on the first operation
// that needs it.
type Managed struct {
	cfg    models.AdapterConfig
	client ProviderClient
}

func newManaged(cfg models.AdapterConfig) (*Managed, error) {
	switch cfg.Type {
	case models.AdapterPrivy:
		if cfg.AppID == "" || cfg.AppSecret == "" {
			return nil, fmt.Errorf("%w: privy needs appId and appSecret", ErrMissingCredentials)
		}
	case models.AdapterCoinbaseCDP:
		if cfg.APIKeyID == "" || cfg.APIKeySecret == "" {
			return nil, fmt.Errorf("%w: coinbase-cdp needs apiKeyId and apiKeySecret", ErrMissingCredentials)
		}
	case models.AdapterCrossmint:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: crossmint needs apiKey", ErrMissingCredentials)
		}
	}
	return &Managed{cfg: cfg}, nil
}

func (m *Managed) resolve() (ProviderClient, error) {
	if m.client == nil {
		client, err := lookupProvider(m.cfg.Type)
		if err != nil {
			return nil, err
		}
		m.client = client
	}
	return m.client, nil
}

// Provision creates or claims the provider-side wallet, recording the
// returned wallet id and address. Already provisioned adapters return
// the cached address without another provider round trip.
func (m *Managed) Provision(ctx context.Context) (string, error) {
	if m.cfg.Address != "" {
		return m.cfg.Address, nil
	}
	client, err := m.resolve()
	if err != nil {
		return "", err
	}
	walletID, address, err := client.Provision(ctx, m.cfg)
	if err != nil {
		return "", fmt.Errorf("%s provisioning failed: %w", m.cfg.Type, err)
	}
	m.cfg.WalletID = walletID
	m.cfg.Address = address
	return address, nil
}

func (m *Managed) Address() (string, error) {
	if m.cfg.Address == "" {
		return "", ErrNotInitialized
	}
	return m.cfg.Address, nil
}

func (m *Managed) IsInitialized() bool {
	return m.cfg.Address != ""
}

func (m *Managed) SignsExternally() bool {
	return false
}

func (m *Managed) Balance(ctx context.Context, caip2 string) (string, error) {
	return usdcBalance(ctx, m, caip2)
}

func (m *Managed) SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error) {
	if m.cfg.Address == "" {
		return "", ErrNotInitialized
	}
	client, err := m.resolve()
	if err != nil {
		return "", err
	}
	sig, err := client.SignTypedData(ctx, m.cfg, td)
	if err != nil {
		return "", fmt.Errorf("%s signing failed: %w", m.cfg.Type, err)
	}
	return sig, nil
}

func (m *Managed) Serialize() models.AdapterConfig {
	return m.cfg
}
