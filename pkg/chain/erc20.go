// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain performs the on-chain reads the broker needs: USDC
// balance and decimals over a plain ERC-20 call against the chain's
// default RPC endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/usdc"
)

const erc20ABIJSON = `[
  {"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Client reads the USDC contract of one chain.
type Client struct {
	endpoint string
	token    common.Address
}

// NewClient builds a client for the given CAIP-2 network against its
// default RPC endpoint.
func NewClient(caip2 string) (*Client, error) {
	spec, ok := constants.ChainByCaip2(caip2)
	if !ok {
		return nil, fmt.Errorf("unsupported network %q", caip2)
	}
	return &Client{
		endpoint: spec.RPCEndpoint,
		token:    common.HexToAddress(spec.USDCAddress),
	}, nil
}

// NewClientWithEndpoint overrides the RPC endpoint, used by tests and
// local forks.
func NewClientWithEndpoint(caip2, endpoint string) (*Client, error) {
	c, err := NewClient(caip2)
	if err != nil {
		return nil, err
	}
	c.endpoint = endpoint
	return c, nil
}

// USDCBalance returns the holder's USDC balance as a decimal string,
// formatted with the decimals the contract reports.
func (c *Client) USDCBalance(ctx context.Context, holder string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RPCRequestTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to dial RPC %s: %w", c.endpoint, err)
	}
	defer client.Close()

	balance, err := c.callUint(ctx, client, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return "", fmt.Errorf("balanceOf failed: %w", err)
	}
	decimals, err := c.callUint(ctx, client, "decimals")
	if err != nil {
		return "", fmt.Errorf("decimals failed: %w", err)
	}

	return usdc.FormatAtomic(balance, int(decimals.Int64())), nil
}

// callUint performs a read-only contract call whose single output is an
// unsigned integer of any width.
func (c *Client) callUint(ctx context.Context, client *ethclient.Client, method string, args ...any) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	switch v := values[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
}
