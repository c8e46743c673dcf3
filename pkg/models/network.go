// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

import (
	"fmt"

	"github.com/luxfi/clawlet/pkg/constants"
)

// Network is the process-wide chain selection. It is persisted by name
// ("base" or "base-sepolia") and resolved to a CAIP-2 id on use.
type Network string

const (
	Undefined   Network = ""
	Base        Network = constants.NetworkBase
	BaseSepolia Network = constants.NetworkBaseSepolia
)

func (n Network) String() string {
	return string(n)
}

func (n Network) Valid() bool {
	switch n {
	case Base, BaseSepolia:
		return true
	}
	return false
}

// Caip2 returns the CAIP-2 chain id for the network.
func (n Network) Caip2() (string, error) {
	caip2, ok := constants.NetworkToCaip2[string(n)]
	if !ok {
		return "", fmt.Errorf("unsupported network %q", string(n))
	}
	return caip2, nil
}

// Chain returns the chain registry entry for the network.
func (n Network) Chain() (constants.ChainSpec, error) {
	caip2, err := n.Caip2()
	if err != nil {
		return constants.ChainSpec{}, err
	}
	spec, ok := constants.ChainByCaip2(caip2)
	if !ok {
		return constants.ChainSpec{}, fmt.Errorf("no chain registered for %q", caip2)
	}
	return spec, nil
}
