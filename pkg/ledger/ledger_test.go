// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := state.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	id := "1234567890abcdef"
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
	return New(s)
}

func TestAddAndList(t *testing.T) {
	require := require.New(t)
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		_, err := l.Add(AddParams{
			Payee:   "0xpayee",
			Service: fmt.Sprintf("svc%d.example", i),
			Amount:  "0.1",
			Asset:   "0xusdc",
			Network: "eip155:84532",
			Status:  models.TxPending,
		})
		require.NoError(err)
	}

	txs, err := l.List(0)
	require.NoError(err)
	require.Len(txs, 3)
	// Newest first.
	require.Equal("svc2.example", txs[0].Service)
	require.Equal("svc0.example", txs[2].Service)
	require.Len(txs[0].ID, 32)

	txs, err = l.List(2)
	require.NoError(err)
	require.Len(txs, 2)
	require.Equal("svc2.example", txs[0].Service)
}

func TestUpdate(t *testing.T) {
	require := require.New(t)
	l := newTestLedger(t)

	tx, err := l.Add(AddParams{
		Payee: "0xp", Service: "svc.example", Amount: "0.5",
		Asset: "0xusdc", Network: "eip155:8453", Status: models.TxPending,
	})
	require.NoError(err)

	hash := "0xabcd"
	updated, err := l.Update(tx.ID, Patch{Status: models.TxSettled, TxHash: &hash})
	require.NoError(err)
	require.Equal(models.TxSettled, updated.Status)
	require.Equal("0xabcd", *updated.TxHash)

	_, err = l.Update("missing", Patch{Status: models.TxFailed})
	require.ErrorIs(err, ErrTxNotFound)
}

func TestTodaySpent(t *testing.T) {
	require := require.New(t)
	l := newTestLedger(t)

	// Settled today: counted.
	tx, err := l.Add(AddParams{
		Payee: "0xp", Service: "a.example", Amount: "0.09",
		Asset: "0xusdc", Network: "eip155:8453", Status: models.TxSettled,
	})
	require.NoError(err)
	_ = tx

	// Pending today: not counted.
	_, err = l.Add(AddParams{
		Payee: "0xp", Service: "b.example", Amount: "1.00",
		Asset: "0xusdc", Network: "eip155:8453", Status: models.TxPending,
	})
	require.NoError(err)

	spent, err := l.TodaySpent()
	require.NoError(err)
	require.Equal(int64(90000), spent.Int64())
}

func TestTodaySpentIgnoresOtherDays(t *testing.T) {
	require := require.New(t)
	l := newTestLedger(t)

	tx, err := l.Add(AddParams{
		Payee: "0xp", Service: "a.example", Amount: "3.00",
		Asset: "0xusdc", Network: "eip155:8453", Status: models.TxSettled,
	})
	require.NoError(err)

	// Rewrite the timestamp to yesterday through the store directly.
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)
	require.NoError(lStore(l).Update(func(doc *models.Document) error {
		doc.ActiveWallet().Transactions[0].Timestamp = yesterday
		_ = tx
		return nil
	}))

	spent, err := l.TodaySpent()
	require.NoError(err)
	require.Equal(int64(0), spent.Int64())
}

// lStore exposes the ledger's store for test fixtures.
func lStore(l *Ledger) *state.Store {
	return l.store
}
