// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wallet manages the wallet roster: creation, selection,
// freezing, identity, and adapter hydration. It is a thin façade over
// the state store and the adapter variants.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/adapter"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/utils"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrAgentNameRequired = errors.New("agent identity requires a name")
)

// Manager owns the adapter cache: each wallet's adapter is hydrated from
// its persisted config once and reused afterwards.
type Manager struct {
	store *state.Store
	log   *zap.Logger

	mu       sync.Mutex
	adapters map[string]adapter.Adapter
}

func NewManager(store *state.Store, log *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		log:      log,
		adapters: map[string]adapter.Adapter{},
	}
}

// Create builds and provisions an adapter, persists the new wallet with
// default rules, and makes it active.
func (m *Manager) Create(ctx context.Context, cfg models.AdapterConfig, label string) (models.WalletEntry, error) {
	a, err := adapter.New(cfg)
	if err != nil {
		return models.WalletEntry{}, err
	}
	if _, err := a.Provision(ctx); err != nil {
		return models.WalletEntry{}, err
	}

	entry := models.WalletEntry{
		ID:            utils.RandomHex(8),
		Label:         label,
		CreatedAt:     utils.NowTimestamp(),
		AdapterConfig: a.Serialize(),
		Rules:         models.DefaultRules(),
		Transactions:  []models.Transaction{},
	}

	err = m.store.Update(func(doc *models.Document) error {
		if entry.Label == "" {
			entry.Label = fmt.Sprintf("Wallet %d", len(doc.Wallets)+1)
		}
		doc.Wallets = append(doc.Wallets, entry)
		doc.ActiveWalletID = &entry.ID
		return nil
	})
	if err != nil {
		return models.WalletEntry{}, err
	}

	m.mu.Lock()
	m.adapters[entry.ID] = a
	m.mu.Unlock()

	m.log.Info("created wallet",
		zap.String("id", entry.ID),
		zap.String("type", string(cfg.Type)),
		zap.String("label", entry.Label))
	return entry, nil
}

// List returns all wallets and the active id.
func (m *Manager) List() ([]models.WalletEntry, *string) {
	doc := m.store.Document()
	return doc.Wallets, doc.ActiveWalletID
}

// Switch makes the identified wallet active.
func (m *Manager) Switch(id string) (models.WalletEntry, error) {
	var out models.WalletEntry
	err := m.store.Update(func(doc *models.Document) error {
		w := doc.WalletByID(id)
		if w == nil {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
		}
		doc.ActiveWalletID = &w.ID
		out = w.Clone()
		return nil
	})
	return out, err
}

// Remove deletes a wallet. When the active wallet is removed the first
// remaining wallet, if any, becomes active.
func (m *Manager) Remove(id string) error {
	err := m.store.Update(func(doc *models.Document) error {
		idx := -1
		for i := range doc.Wallets {
			if doc.Wallets[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
		}
		doc.Wallets = append(doc.Wallets[:idx], doc.Wallets[idx+1:]...)
		if doc.ActiveWalletID != nil && *doc.ActiveWalletID == id {
			if len(doc.Wallets) > 0 {
				doc.ActiveWalletID = &doc.Wallets[0].ID
			} else {
				doc.ActiveWalletID = nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.adapters, id)
	m.mu.Unlock()
	return nil
}

// Rename relabels the active wallet.
func (m *Manager) Rename(label string) (models.WalletEntry, error) {
	if label == "" {
		return models.WalletEntry{}, fmt.Errorf("label must not be empty")
	}
	return m.updateActive(func(w *models.WalletEntry) {
		w.Label = label
	})
}

// Freeze gates the active wallet against any payment.
func (m *Manager) Freeze() (models.WalletEntry, error) {
	return m.updateActive(func(w *models.WalletEntry) {
		w.Frozen = true
	})
}

// Unfreeze lifts the payment gate.
func (m *Manager) Unfreeze() (models.WalletEntry, error) {
	return m.updateActive(func(w *models.WalletEntry) {
		w.Frozen = false
	})
}

// AgentIdentity returns the active wallet's identity, nil when unset.
func (m *Manager) AgentIdentity() (*models.AgentIdentity, error) {
	w, err := m.store.RequireActive()
	if err != nil {
		return nil, err
	}
	return w.AgentIdentity, nil
}

// SetAgentIdentity replaces the active wallet's identity record.
func (m *Manager) SetAgentIdentity(identity models.AgentIdentity) (models.AgentIdentity, error) {
	if identity.Name == "" {
		return models.AgentIdentity{}, ErrAgentNameRequired
	}
	_, err := m.updateActive(func(w *models.WalletEntry) {
		id := identity
		w.AgentIdentity = &id
	})
	return identity, err
}

// ActiveAdapter hydrates (or returns the cached) adapter of the active
// wallet together with a snapshot of the entry.
func (m *Manager) ActiveAdapter() (adapter.Adapter, models.WalletEntry, error) {
	w, err := m.store.RequireActive()
	if err != nil {
		return nil, models.WalletEntry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.adapters[w.ID]; ok {
		return a, w, nil
	}
	a, err := adapter.New(w.AdapterConfig)
	if err != nil {
		return nil, models.WalletEntry{}, fmt.Errorf("failed to hydrate adapter for wallet %s: %w", w.ID, err)
	}
	m.adapters[w.ID] = a
	return a, w, nil
}

// Balance reads the active wallet's USDC balance on the current network,
// or on an explicit CAIP-2 override.
func (m *Manager) Balance(ctx context.Context, caip2Override string) (balance, caip2 string, err error) {
	a, _, err := m.ActiveAdapter()
	if err != nil {
		return "", "", err
	}
	caip2 = caip2Override
	if caip2 == "" {
		caip2, err = m.store.NetworkCaip2()
		if err != nil {
			return "", "", err
		}
	}
	balance, err = a.Balance(ctx, caip2)
	return balance, caip2, err
}

func (m *Manager) updateActive(mutate func(w *models.WalletEntry)) (models.WalletEntry, error) {
	var out models.WalletEntry
	err := m.store.Update(func(doc *models.Document) error {
		w := doc.ActiveWallet()
		if w == nil {
			return state.ErrNoActiveWallet
		}
		mutate(w)
		out = w.Clone()
		return nil
	})
	return out, err
}
