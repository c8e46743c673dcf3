// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package application wires the components together. Commands receive
// one App and reach everything through it instead of constructing
// components ad hoc.
package application

import (
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/broker"
	"github.com/luxfi/clawlet/pkg/config"
	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/metrics"
	"github.com/luxfi/clawlet/pkg/rules"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/tools"
	"github.com/luxfi/clawlet/pkg/wallet"
)

type App struct {
	Log     *zap.Logger
	Conf    *config.Config
	Store   *state.Store
	Ledger  *ledger.Ledger
	Rules   *rules.Engine
	Manager *wallet.Manager
	Metrics *metrics.Metrics
	Broker  *broker.Broker
	Tools   *tools.Catalog
}

func New() *App {
	return &App{}
}

// Setup builds the component graph bottom-up over an opened store.
func (app *App) Setup(log *zap.Logger, conf *config.Config, store *state.Store) {
	app.Log = log
	app.Conf = conf
	app.Store = store
	app.Ledger = ledger.New(store)
	app.Manager = wallet.NewManager(store, log)
	app.Rules = rules.New(store, app.Ledger)
	app.Metrics = metrics.New()
	app.Broker = broker.New(store, app.Ledger, app.Rules, app.Manager, app.Metrics, log)
	app.Tools = tools.New(store, app.Manager, app.Ledger, app.Rules, app.Broker, conf.DemoMode, log)
}
