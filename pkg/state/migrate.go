// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/utils"
)

// legacyDocument is the schema V1 single-wallet layout. It is recognized
// by the absence of a "wallets" array and the presence of a top-level
// adapter config.
type legacyDocument struct {
	AdapterConfig models.AdapterConfig `json:"adapterConfig"`
	Wallet        *legacyWallet        `json:"wallet"`
	Rules         models.SpendingRules `json:"rules"`
	Transactions  []models.Transaction `json:"transactions"`
}

type legacyWallet struct {
	Address string `json:"address"`
}

// load decodes a state file, migrating V1 documents to V2. The second
// return reports whether a migration happened.
func load(raw []byte) (models.Document, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return models.Document{}, false, fmt.Errorf("state file is not valid JSON: %w", err)
	}

	if _, ok := probe["wallets"]; ok {
		var doc models.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return models.Document{}, false, err
		}
		normalize(&doc)
		return doc, false, nil
	}

	if _, ok := probe["adapterConfig"]; !ok {
		return models.Document{}, false, fmt.Errorf("unrecognized state file schema")
	}

	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return models.Document{}, false, err
	}

	entry := models.WalletEntry{
		ID:            utils.RandomHex(8),
		Label:         "Wallet 1",
		CreatedAt:     utils.NowTimestamp(),
		AdapterConfig: legacy.AdapterConfig,
		Rules:         legacy.Rules,
		Transactions:  legacy.Transactions,
	}
	if entry.AdapterConfig.Address == "" && legacy.Wallet != nil {
		entry.AdapterConfig.Address = legacy.Wallet.Address
	}

	doc := models.Document{
		Wallets:        []models.WalletEntry{entry},
		ActiveWalletID: &entry.ID,
		Network:        models.Base,
	}
	normalize(&doc)
	return doc, true, nil
}

// normalize repairs nil slices and a dangling active id so the invariants
// hold regardless of what was on disk.
func normalize(doc *models.Document) {
	if doc.Wallets == nil {
		doc.Wallets = []models.WalletEntry{}
	}
	for i := range doc.Wallets {
		w := &doc.Wallets[i]
		if w.Transactions == nil {
			w.Transactions = []models.Transaction{}
		}
		if w.Rules.AllowedServices == nil {
			w.Rules.AllowedServices = []string{}
		}
		if w.Rules.BlockedServices == nil {
			w.Rules.BlockedServices = []string{}
		}
	}
	if !doc.Network.Valid() {
		doc.Network = models.Base
	}
	if doc.ActiveWalletID != nil && doc.WalletByID(*doc.ActiveWalletID) == nil {
		doc.ActiveWalletID = nil
	}
}
