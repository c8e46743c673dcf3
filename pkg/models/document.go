// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

// Document is the persisted multi-wallet state (schema V2). The network
// selection is process-wide, not per wallet.
type Document struct {
	Wallets        []WalletEntry `json:"wallets"`
	ActiveWalletID *string       `json:"activeWalletId"`
	Network        Network       `json:"network"`
}

// EmptyDocument returns the document a fresh installation starts with.
func EmptyDocument() Document {
	return Document{
		Wallets: []WalletEntry{},
		Network: Base,
	}
}

// WalletByID returns a pointer into the document's wallet list, or nil.
func (d *Document) WalletByID(id string) *WalletEntry {
	for i := range d.Wallets {
		if d.Wallets[i].ID == id {
			return &d.Wallets[i]
		}
	}
	return nil
}

// ActiveWallet resolves ActiveWalletID, or nil when no wallet is active.
func (d *Document) ActiveWallet() *WalletEntry {
	if d.ActiveWalletID == nil {
		return nil
	}
	return d.WalletByID(*d.ActiveWalletID)
}
