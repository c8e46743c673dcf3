// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package adapter

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/clawlet/pkg/models"
)

// LocalKey signs with a self-custodial secp256k1 key held in the state
// file. Provision generates a fresh key when none is configured.
type LocalKey struct {
	key *ecdsa.PrivateKey
}

func newLocalKey(cfg models.AdapterConfig) (*LocalKey, error) {
	if cfg.PrivateKey == "" {
		return &LocalKey{}, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &LocalKey{key: key}, nil
}

func (k *LocalKey) Provision(context.Context) (string, error) {
	if k.key == nil {
		key, err := crypto.GenerateKey()
		if err != nil {
			return "", fmt.Errorf("failed to generate key: %w", err)
		}
		k.key = key
	}
	return k.address(), nil
}

func (k *LocalKey) Address() (string, error) {
	if k.key == nil {
		return "", ErrNotInitialized
	}
	return k.address(), nil
}

func (k *LocalKey) address() string {
	return crypto.PubkeyToAddress(k.key.PublicKey).Hex()
}

func (k *LocalKey) IsInitialized() bool {
	return k.key != nil
}

func (k *LocalKey) SignsExternally() bool {
	return false
}

func (k *LocalKey) Balance(ctx context.Context, caip2 string) (string, error) {
	return usdcBalance(ctx, k, caip2)
}

// SignTypedData hashes the EIP-712 payload and signs the digest,
// adjusting the recovery byte to the 27/28 convention USDC verifies.
func (k *LocalKey) SignTypedData(_ context.Context, td apitypes.TypedData) (string, error) {
	if k.key == nil {
		return "", ErrNotInitialized
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, k.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func (k *LocalKey) Serialize() models.AdapterConfig {
	cfg := models.AdapterConfig{Type: models.AdapterLocalKey}
	if k.key != nil {
		cfg.PrivateKey = hex.EncodeToString(crypto.FromECDSA(k.key))
		cfg.Address = k.address()
	}
	return cfg
}
