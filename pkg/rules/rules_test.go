// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package rules

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()
	s, err := state.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	id := "fedcba9876543210"
	require.NoError(t, s.Update(func(doc *models.Document) error {
		doc.Wallets = append(doc.Wallets, models.WalletEntry{
			ID:            id,
			Label:         "Wallet 1",
			CreatedAt:     "2026-01-01T00:00:00Z",
			AdapterConfig: models.AdapterConfig{Type: models.AdapterBrowser, Address: "0xabc"},
			Rules:         models.DefaultRules(),
			Transactions:  []models.Transaction{},
		})
		doc.ActiveWalletID = &id
		return nil
	}))
	l := ledger.New(s)
	return New(s, l), l
}

func strp(s string) *string { return &s }

func TestPerTransactionLimit(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	maxPerTx := strp("5.00")
	_, err := e.Set(Patch{MaxPerTransaction: &maxPerTx})
	require.NoError(err)

	require.NoError(e.Enforce(big.NewInt(5000000), "api.example"))
	err = e.Enforce(big.NewInt(5000001), "api.example")
	require.ErrorIs(err, ErrOverPerTx)
	require.Contains(err.Error(), "5.00")
}

func TestDailyCapBoundary(t *testing.T) {
	require := require.New(t)
	e, l := newTestEngine(t)

	dailyCap := strp("0.10")
	_, err := e.Set(Patch{DailyCap: &dailyCap})
	require.NoError(err)

	_, err = l.Add(ledger.AddParams{
		Payee: "0xp", Service: "a.example", Amount: "0.09",
		Asset: "0xusdc", Network: "eip155:8453", Status: models.TxSettled,
	})
	require.NoError(err)

	// Exactly at the cap: allowed. One atomic unit over: rejected.
	require.NoError(e.Enforce(big.NewInt(10000), "api.example"))
	err = e.Enforce(big.NewInt(10001), "api.example")
	require.ErrorIs(err, ErrOverDaily)
}

func TestBlockedTakesPrecedenceOverAllowed(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	allowed := []string{"example"}
	blocked := []string{"evil.example"}
	_, err := e.Set(Patch{AllowedServices: &allowed, BlockedServices: &blocked})
	require.NoError(err)

	// Matches both lists; block wins.
	err = e.Enforce(big.NewInt(1), "api.evil.example")
	require.ErrorIs(err, ErrBlocked)

	require.NoError(e.Enforce(big.NewInt(1), "api.good.example"))
}

func TestAllowlist(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	allowed := []string{"Good.Example"}
	_, err := e.Set(Patch{AllowedServices: &allowed})
	require.NoError(err)

	// Patterns are stored lowercase and matched case-insensitively.
	r, err := e.Get()
	require.NoError(err)
	require.Equal([]string{"good.example"}, r.AllowedServices)

	require.NoError(e.Enforce(big.NewInt(1), "API.GOOD.EXAMPLE"))
	err = e.Enforce(big.NewInt(1), "api.other.example")
	require.ErrorIs(err, ErrNotAllowed)
}

func TestEmptyAllowlistAllowsAll(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	require.NoError(e.Enforce(big.NewInt(1000000), "anything.example"))
}

func TestSetPartialPatch(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	maxPerTx := strp("5.00")
	_, err := e.Set(Patch{MaxPerTransaction: &maxPerTx})
	require.NoError(err)

	// Patching another field leaves maxPerTransaction alone.
	blocked := []string{"evil"}
	r, err := e.Set(Patch{BlockedServices: &blocked})
	require.NoError(err)
	require.Equal("5.00", *r.MaxPerTransaction)

	// Explicit nil clears the limit.
	var cleared *string
	r, err = e.Set(Patch{MaxPerTransaction: &cleared})
	require.NoError(err)
	require.Nil(r.MaxPerTransaction)
}

func TestSetRejectsMalformedLimit(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t)

	bad := strp("five dollars")
	_, err := e.Set(Patch{DailyCap: &bad})
	require.Error(err)
}

func TestViolationKind(t *testing.T) {
	require := require.New(t)

	require.Equal("blocked", ViolationKind(ErrBlocked))
	require.Equal("", ViolationKind(state.ErrNoActiveWallet))
	require.True(IsViolation(ErrOverDaily))
	require.False(IsViolation(state.ErrNoActiveWallet))
}
