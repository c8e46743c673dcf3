// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

// Clone deep-copies the document so callers can read it outside the
// store's lock without observing later mutations.
func (d Document) Clone() Document {
	out := d
	out.Wallets = make([]WalletEntry, len(d.Wallets))
	for i, w := range d.Wallets {
		out.Wallets[i] = w.Clone()
	}
	if d.ActiveWalletID != nil {
		id := *d.ActiveWalletID
		out.ActiveWalletID = &id
	}
	return out
}

// Clone deep-copies a wallet entry.
func (w WalletEntry) Clone() WalletEntry {
	out := w
	out.Rules = w.Rules.Clone()
	out.Transactions = make([]Transaction, len(w.Transactions))
	for i, tx := range w.Transactions {
		out.Transactions[i] = tx.Clone()
	}
	if w.AgentIdentity != nil {
		id := *w.AgentIdentity
		out.AgentIdentity = &id
	}
	return out
}

// Clone deep-copies a rule set.
func (r SpendingRules) Clone() SpendingRules {
	out := r
	if r.MaxPerTransaction != nil {
		v := *r.MaxPerTransaction
		out.MaxPerTransaction = &v
	}
	if r.DailyCap != nil {
		v := *r.DailyCap
		out.DailyCap = &v
	}
	out.AllowedServices = append([]string{}, r.AllowedServices...)
	out.BlockedServices = append([]string{}, r.BlockedServices...)
	return out
}

// Clone deep-copies a transaction.
func (t Transaction) Clone() Transaction {
	out := t
	if t.TxHash != nil {
		v := *t.TxHash
		out.TxHash = &v
	}
	return out
}
