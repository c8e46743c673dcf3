// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/state"
)

func newTestManager(t *testing.T) (*Manager, *state.Store) {
	t.Helper()
	s, err := state.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewManager(s, zap.NewNop()), s
}

func TestCreateLocalKeyWallet(t *testing.T) {
	require := require.New(t)
	m, s := newTestManager(t)

	entry, err := m.Create(context.Background(), models.AdapterConfig{Type: models.AdapterLocalKey}, "")
	require.NoError(err)
	require.Equal("Wallet 1", entry.Label)
	require.Len(entry.ID, 16)
	require.Len(entry.AdapterConfig.PrivateKey, 64)
	require.NotEmpty(entry.AdapterConfig.Address)
	require.False(entry.Frozen)

	// The new wallet became active and was persisted.
	active, err := s.RequireActive()
	require.NoError(err)
	require.Equal(entry.ID, active.ID)

	// Second wallet gets the next default label and takes over as active.
	entry2, err := m.Create(context.Background(), models.AdapterConfig{
		Type: models.AdapterBrowser, Address: "0xabc",
	}, "")
	require.NoError(err)
	require.Equal("Wallet 2", entry2.Label)
	active, err = s.RequireActive()
	require.NoError(err)
	require.Equal(entry2.ID, active.ID)
}

func TestSwitchAndRemove(t *testing.T) {
	require := require.New(t)
	m, s := newTestManager(t)
	ctx := context.Background()

	w1, err := m.Create(ctx, models.AdapterConfig{Type: models.AdapterBrowser, Address: "0x1"}, "one")
	require.NoError(err)
	w2, err := m.Create(ctx, models.AdapterConfig{Type: models.AdapterBrowser, Address: "0x2"}, "two")
	require.NoError(err)

	_, err = m.Switch(w1.ID)
	require.NoError(err)
	active, err := s.RequireActive()
	require.NoError(err)
	require.Equal(w1.ID, active.ID)

	_, err = m.Switch("nope")
	require.ErrorIs(err, ErrWalletNotFound)

	// Removing the active wallet promotes the first remaining one.
	require.NoError(m.Remove(w1.ID))
	active, err = s.RequireActive()
	require.NoError(err)
	require.Equal(w2.ID, active.ID)

	require.NoError(m.Remove(w2.ID))
	_, err = s.RequireActive()
	require.ErrorIs(err, state.ErrNoActiveWallet)

	require.ErrorIs(m.Remove(w2.ID), ErrWalletNotFound)
}

func TestRenameFreezeUnfreeze(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Rename("new name")
	require.ErrorIs(err, state.ErrNoActiveWallet)

	_, err = m.Create(ctx, models.AdapterConfig{Type: models.AdapterBrowser, Address: "0x1"}, "")
	require.NoError(err)

	w, err := m.Rename("spending wallet")
	require.NoError(err)
	require.Equal("spending wallet", w.Label)

	_, err = m.Rename("")
	require.Error(err)

	w, err = m.Freeze()
	require.NoError(err)
	require.True(w.Frozen)

	w, err = m.Unfreeze()
	require.NoError(err)
	require.False(w.Frozen)
}

func TestAgentIdentity(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, models.AdapterConfig{Type: models.AdapterBrowser, Address: "0x1"}, "")
	require.NoError(err)

	id, err := m.AgentIdentity()
	require.NoError(err)
	require.Nil(id)

	_, err = m.SetAgentIdentity(models.AgentIdentity{Description: "no name"})
	require.ErrorIs(err, ErrAgentNameRequired)

	set, err := m.SetAgentIdentity(models.AgentIdentity{
		Name:          "shopbot",
		AgentID:       "42",
		AgentRegistry: "eip155:8453:0xregistry",
	})
	require.NoError(err)
	require.Equal("shopbot", set.Name)

	id, err = m.AgentIdentity()
	require.NoError(err)
	require.NotNil(id)
	require.Equal("42", id.AgentID)
}

func TestActiveAdapterHydration(t *testing.T) {
	require := require.New(t)
	m, s := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, models.AdapterConfig{Type: models.AdapterLocalKey}, "")
	require.NoError(err)

	// A fresh manager over the same store must hydrate the adapter from
	// the persisted key and report the same address.
	m2 := NewManager(s, zap.NewNop())
	a, entry, err := m2.ActiveAdapter()
	require.NoError(err)
	require.Equal(created.ID, entry.ID)
	addr, err := a.Address()
	require.NoError(err)
	require.Equal(created.AdapterConfig.Address, addr)

	// Cached: same instance on the second call.
	a2, _, err := m2.ActiveAdapter()
	require.NoError(err)
	require.Same(a, a2)
}
