// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state owns the persisted multi-wallet document. All reads and
// writes go through the Store so memory and disk cannot skew: every
// mutation is applied under the store mutex and written to disk (atomic
// temp-file + rename) before the mutating call returns.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/models"
)

var (
	ErrNoActiveWallet = errors.New("no active wallet selected")
	ErrUnknownNetwork = errors.New("unknown network")
)

// Store holds the in-memory document and its on-disk mirror.
type Store struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
	doc  models.Document
}

// New loads the state file under dataDir, migrating a legacy
// single-wallet document if one is found, or creates an empty document.
// Either way the result is persisted before New returns.
func New(dataDir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, constants.DefaultPerms755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}

	s := &Store{
		path: filepath.Join(dataDir, constants.StateFileName),
		log:  log,
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = models.EmptyDocument()
		log.Info("initialized empty wallet state", zap.String("path", s.path))
	case err != nil:
		return nil, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	default:
		doc, migrated, loadErr := load(raw)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to load state file %s: %w", s.path, loadErr)
		}
		s.doc = doc
		if migrated {
			log.Info("migrated legacy single-wallet state",
				zap.String("path", s.path),
				zap.Int("wallets", len(doc.Wallets)))
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// View runs fn with read access to the document under the store lock.
// fn must not retain references past its return.
func (s *Store) View(fn func(doc *models.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.doc)
}

// Update runs fn with write access to the document and persists the
// result. When fn errors nothing is written; fn should validate before
// it mutates.
func (s *Store) Update(fn func(doc *models.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.doc); err != nil {
		return err
	}
	return s.persistLocked()
}

// Document returns a deep copy of the current document.
func (s *Store) Document() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// ActiveWallet returns a copy of the active wallet, if any.
func (s *Store) ActiveWallet() (models.WalletEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.doc.ActiveWallet()
	if w == nil {
		return models.WalletEntry{}, false
	}
	return w.Clone(), true
}

// RequireActive is ActiveWallet that fails when no wallet is active.
func (s *Store) RequireActive() (models.WalletEntry, error) {
	w, ok := s.ActiveWallet()
	if !ok {
		return models.WalletEntry{}, ErrNoActiveWallet
	}
	return w, nil
}

// Network returns the process-wide network selection.
func (s *Store) Network() models.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Network
}

// NetworkCaip2 returns the CAIP-2 id of the selected network.
func (s *Store) NetworkCaip2() (string, error) {
	return s.Network().Caip2()
}

// SetNetwork switches the process-wide network selection.
func (s *Store) SetNetwork(n models.Network) error {
	if !n.Valid() {
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrUnknownNetwork, n, models.Base, models.BaseSepolia)
	}
	return s.Update(func(doc *models.Document) error {
		doc.Network = n
		return nil
	})
}

// persistLocked writes the document atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.WriteReadReadPerms); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
