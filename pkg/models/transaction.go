// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

// TxStatus is the lifecycle state of a ledger entry.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSettled TxStatus = "settled"
	TxFailed  TxStatus = "failed"
)

// Transaction is one ledger entry. Entries are appended pending before a
// signature is produced and transition to settled or failed exactly once;
// they are never deleted.
type Transaction struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Payee     string   `json:"payee"`
	Service   string   `json:"service"`
	Amount    string   `json:"amount"`
	Asset     string   `json:"asset"`
	Network   string   `json:"network"`
	TxHash    *string  `json:"txHash"`
	Status    TxStatus `json:"status"`
	Reason    string   `json:"reason,omitempty"`
}
