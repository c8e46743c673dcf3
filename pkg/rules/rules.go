// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rules validates pending payments against the active wallet's
// spending rules. Enforcement is fail-fast in a fixed order: per-tx
// limit, rolling daily cap, blocklist, allowlist.
package rules

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/usdc"
)

// Rule violations, one sentinel per kind. Wrapped errors carry the limit
// and the offending value in the message.
var (
	ErrOverPerTx  = errors.New("payment exceeds per-transaction limit")
	ErrOverDaily  = errors.New("payment exceeds daily cap")
	ErrBlocked    = errors.New("service is blocked")
	ErrNotAllowed = errors.New("service is not on the allowlist")
)

// Engine reads rules from the store and spend history from the ledger.
type Engine struct {
	store  *state.Store
	ledger *ledger.Ledger
}

func New(store *state.Store, l *ledger.Ledger) *Engine {
	return &Engine{store: store, ledger: l}
}

// Patch replaces individual rule fields; nil fields are left untouched.
// Pointer-to-pointer limits distinguish "leave alone" from "clear".
type Patch struct {
	MaxPerTransaction **string
	DailyCap          **string
	AllowedServices   *[]string
	BlockedServices   *[]string
}

// Get returns the active wallet's rules.
func (e *Engine) Get() (models.SpendingRules, error) {
	w, err := e.store.RequireActive()
	if err != nil {
		return models.SpendingRules{}, err
	}
	return w.Rules, nil
}

// Set applies a partial patch and persists. Limits are validated as
// decimal USDC; service patterns are normalized to lowercase.
func (e *Engine) Set(patch Patch) (models.SpendingRules, error) {
	if patch.MaxPerTransaction != nil && *patch.MaxPerTransaction != nil {
		if _, err := usdc.ParseDecimal(**patch.MaxPerTransaction, constants.USDCDecimals); err != nil {
			return models.SpendingRules{}, fmt.Errorf("invalid maxPerTransaction: %w", err)
		}
	}
	if patch.DailyCap != nil && *patch.DailyCap != nil {
		if _, err := usdc.ParseDecimal(**patch.DailyCap, constants.USDCDecimals); err != nil {
			return models.SpendingRules{}, fmt.Errorf("invalid dailyCap: %w", err)
		}
	}

	var out models.SpendingRules
	err := e.store.Update(func(doc *models.Document) error {
		w := doc.ActiveWallet()
		if w == nil {
			return state.ErrNoActiveWallet
		}
		if patch.MaxPerTransaction != nil {
			w.Rules.MaxPerTransaction = *patch.MaxPerTransaction
		}
		if patch.DailyCap != nil {
			w.Rules.DailyCap = *patch.DailyCap
		}
		if patch.AllowedServices != nil {
			w.Rules.AllowedServices = normalizePatterns(*patch.AllowedServices)
		}
		if patch.BlockedServices != nil {
			w.Rules.BlockedServices = normalizePatterns(*patch.BlockedServices)
		}
		out = w.Rules.Clone()
		return nil
	})
	if err != nil {
		return models.SpendingRules{}, err
	}
	return out, nil
}

// Enforce validates a pending payment of amountAtomic USDC atomic units
// to the named service, failing on the first violation.
func (e *Engine) Enforce(amountAtomic *big.Int, service string) error {
	w, err := e.store.RequireActive()
	if err != nil {
		return err
	}
	r := w.Rules

	if r.MaxPerTransaction != nil {
		limit, err := usdc.ParseDecimal(*r.MaxPerTransaction, constants.USDCDecimals)
		if err != nil {
			return fmt.Errorf("stored maxPerTransaction is invalid: %w", err)
		}
		if amountAtomic.Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s USDC > limit %s USDC",
				ErrOverPerTx, usdc.Format(amountAtomic), *r.MaxPerTransaction)
		}
	}

	if r.DailyCap != nil {
		capAtomic, err := usdc.ParseDecimal(*r.DailyCap, constants.USDCDecimals)
		if err != nil {
			return fmt.Errorf("stored dailyCap is invalid: %w", err)
		}
		spent, err := e.ledger.TodaySpent()
		if err != nil {
			return err
		}
		if new(big.Int).Add(spent, amountAtomic).Cmp(capAtomic) > 0 {
			return fmt.Errorf("%w: %s USDC spent today + %s USDC > cap %s USDC",
				ErrOverDaily, usdc.Format(spent), usdc.Format(amountAtomic), *r.DailyCap)
		}
	}

	host := strings.ToLower(service)
	for _, pattern := range r.BlockedServices {
		if pattern != "" && strings.Contains(host, pattern) {
			return fmt.Errorf("%w: %q matches blocked pattern %q", ErrBlocked, service, pattern)
		}
	}

	if len(r.AllowedServices) > 0 {
		for _, pattern := range r.AllowedServices {
			if pattern != "" && strings.Contains(host, pattern) {
				return nil
			}
		}
		return fmt.Errorf("%w: %q matches no allowed pattern", ErrNotAllowed, service)
	}

	return nil
}

// IsViolation reports whether err is one of the rule-violation kinds.
func IsViolation(err error) bool {
	return errors.Is(err, ErrOverPerTx) ||
		errors.Is(err, ErrOverDaily) ||
		errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrNotAllowed)
}

// ViolationKind names the violated rule for metrics labels.
func ViolationKind(err error) string {
	switch {
	case errors.Is(err, ErrOverPerTx):
		return "over-per-tx"
	case errors.Is(err, ErrOverDaily):
		return "over-daily"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrNotAllowed):
		return "not-allowed"
	}
	return ""
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
