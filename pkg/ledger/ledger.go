// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger appends and updates the transaction records of the
// active wallet. Entries are created pending before any signature is
// produced and transition to settled or failed exactly once; nothing is
// ever deleted.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/usdc"
	"github.com/luxfi/clawlet/pkg/utils"
)

var ErrTxNotFound = errors.New("transaction not found")

// Ledger is a view over the active wallet's transaction list.
type Ledger struct {
	store *state.Store
}

func New(store *state.Store) *Ledger {
	return &Ledger{store: store}
}

// AddParams carries the caller-supplied fields of a new entry.
type AddParams struct {
	Payee   string
	Service string
	Amount  string
	Asset   string
	Network string
	TxHash  *string
	Status  models.TxStatus
	Reason  string
}

// Patch updates an entry's outcome fields; nil fields are left alone.
type Patch struct {
	Status models.TxStatus
	TxHash *string
	Reason *string
}

// Add allocates an id and timestamp, appends the entry to the active
// wallet, persists, and returns the record.
func (l *Ledger) Add(params AddParams) (models.Transaction, error) {
	tx := models.Transaction{
		ID:        utils.RandomHex(16),
		Timestamp: utils.NowTimestamp(),
		Payee:     params.Payee,
		Service:   params.Service,
		Amount:    params.Amount,
		Asset:     params.Asset,
		Network:   params.Network,
		TxHash:    params.TxHash,
		Status:    params.Status,
		Reason:    params.Reason,
	}
	err := l.store.Update(func(doc *models.Document) error {
		w := doc.ActiveWallet()
		if w == nil {
			return state.ErrNoActiveWallet
		}
		w.Transactions = append(w.Transactions, tx)
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

// Update applies a patch to the identified entry on the active wallet.
func (l *Ledger) Update(id string, patch Patch) (models.Transaction, error) {
	var updated models.Transaction
	err := l.store.Update(func(doc *models.Document) error {
		w := doc.ActiveWallet()
		if w == nil {
			return state.ErrNoActiveWallet
		}
		for i := range w.Transactions {
			if w.Transactions[i].ID != id {
				continue
			}
			tx := &w.Transactions[i]
			if patch.Status != "" {
				tx.Status = patch.Status
			}
			if patch.TxHash != nil {
				tx.TxHash = patch.TxHash
			}
			if patch.Reason != nil {
				tx.Reason = *patch.Reason
			}
			updated = tx.Clone()
			return nil
		}
		return fmt.Errorf("%w: %s", ErrTxNotFound, id)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return updated, nil
}

// List returns the newest-first slice of the active wallet's entries,
// capped at 200. A wallet-less state lists as empty rather than erroring
// so read surfaces stay usable before onboarding.
func (l *Ledger) List(limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > constants.MaxTransactionListLimit {
		limit = constants.MaxTransactionListLimit
	}
	w, ok := l.store.ActiveWallet()
	if !ok {
		return []models.Transaction{}, nil
	}
	out := make([]models.Transaction, 0, limit)
	for i := len(w.Transactions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.Transactions[i])
	}
	return out, nil
}

// TodaySpent sums, in atomic units, the settled entries whose timestamp
// falls on the current UTC date. Recomputed on every call.
func (l *Ledger) TodaySpent() (*big.Int, error) {
	total := big.NewInt(0)
	w, ok := l.store.ActiveWallet()
	if !ok {
		return total, nil
	}
	today := time.Now().UTC().Format("2006-01-02")
	for _, tx := range w.Transactions {
		if tx.Status != models.TxSettled || !strings.HasPrefix(tx.Timestamp, today) {
			continue
		}
		atomic, err := usdc.ParseDecimal(tx.Amount, constants.USDCDecimals)
		if err != nil {
			// A malformed historic amount must not wedge payments.
			continue
		}
		total.Add(total, atomic)
	}
	return total, nil
}
