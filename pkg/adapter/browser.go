// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package adapter

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/clawlet/pkg/models"
)

// Browser represents a connected browser wallet. The process only knows
// the address; every signature is produced client-side through the
// two-phase payment flow.
type Browser struct {
	address string
}

func newBrowser(cfg models.AdapterConfig) (*Browser, error) {
	if cfg.Address == "" {
		return nil, ErrMissingAddress
	}
	return &Browser{address: cfg.Address}, nil
}

// Provision is a no-op: the wallet already exists in the browser.
func (b *Browser) Provision(context.Context) (string, error) {
	return b.address, nil
}

func (b *Browser) Address() (string, error) {
	return b.address, nil
}

func (b *Browser) IsInitialized() bool {
	return true
}

func (b *Browser) SignsExternally() bool {
	return true
}

func (b *Browser) Balance(ctx context.Context, caip2 string) (string, error) {
	return usdcBalance(ctx, b, caip2)
}

func (b *Browser) SignTypedData(context.Context, apitypes.TypedData) (string, error) {
	return "", ErrMustSignClientSide
}

func (b *Browser) Serialize() models.AdapterConfig {
	return models.AdapterConfig{Type: models.AdapterBrowser, Address: b.address}
}
