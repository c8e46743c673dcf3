// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package usdc converts between atomic token units and the decimal
// strings used in rules, ledger entries, and tool responses.
package usdc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/clawlet/pkg/constants"
)

// FormatAtomic renders atomic units as a decimal string: no scientific
// notation, at least one fractional digit ("0.0" for zero), trailing
// zeros trimmed from the fraction.
func FormatAtomic(atomic *big.Int, decimals int) string {
	scale := pow10(decimals)
	quo, rem := new(big.Int).QuoRem(atomic, scale, new(big.Int))
	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, rem.String()), "0")
	if frac == "" {
		frac = "0"
	}
	return quo.String() + "." + frac
}

// Format is FormatAtomic at USDC's six decimals.
func Format(atomic *big.Int) string {
	return FormatAtomic(atomic, constants.USDCDecimals)
}

// ParseAtomic parses a non-negative atomic amount ("100000") as sent in
// x402 offers.
func ParseAtomic(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid atomic amount %q", s)
	}
	return v, nil
}

// ParseDecimal converts a decimal USDC string ("5.00") to atomic units.
// At most `decimals` fractional digits are accepted.
func ParseDecimal(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	digits := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
