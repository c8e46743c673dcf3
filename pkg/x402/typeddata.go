// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package x402

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/luxfi/clawlet/pkg/constants"
)

const TransferWithAuthorizationType = "TransferWithAuthorization"

// TransferTypes is the EIP-712 type set for ERC-3009
// TransferWithAuthorization under the USDC domain.
func TransferTypes() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		TransferWithAuthorizationType: []apitypes.Type{
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		},
	}
}

// USDCDomain is the EIP-712 domain of the chain's USDC deployment.
func USDCDomain(chain constants.ChainSpec) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              chain.USDCDomainName,
		Version:           chain.USDCDomainVersion,
		ChainId:           math.NewHexOrDecimal256(int64(chain.ChainID)),
		VerifyingContract: chain.USDCAddress,
	}
}

// TypedData assembles the full signable payload for an authorization.
func TypedData(auth Authorization, chain constants.ChainSpec) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       TransferTypes(),
		PrimaryType: TransferWithAuthorizationType,
		Domain:      USDCDomain(chain),
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       mustDecimal(auth.Value),
			"validAfter":  mustDecimal(auth.ValidAfter),
			"validBefore": mustDecimal(auth.ValidBefore),
			"nonce":       auth.Nonce,
		},
	}
}

// mustDecimal converts a stringified integer into the big-number form
// apitypes expects for uint256 fields. Authorizations are built by this
// module, so the strings are known-good.
func mustDecimal(s string) *math.HexOrDecimal256 {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	return (*math.HexOrDecimal256)(v)
}
