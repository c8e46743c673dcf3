// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tools defines the fixed operation catalog consumed by every
// binding. The HTTP router and the stdio tool protocol both dispatch
// through Invoke, so the catalog is the single behavioral contract the
// agent sees.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/broker"
	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/rules"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/usdc"
	"github.com/luxfi/clawlet/pkg/wallet"
)

var (
	ErrWriteDisabled    = errors.New("write operations are disabled in demo mode")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrValidation       = errors.New("invalid request")
)

// Operation is one catalog entry. ReadOnly operations bypass the
// demo-mode gate.
type Operation struct {
	Name        string
	Description string
	ReadOnly    bool

	handler func(ctx context.Context, args json.RawMessage) (any, error)
}

// Catalog wires the operations to the components they wrap.
type Catalog struct {
	store    *state.Store
	manager  *wallet.Manager
	ledger   *ledger.Ledger
	rules    *rules.Engine
	broker   *broker.Broker
	demoMode bool
	log      *zap.Logger

	ops map[string]Operation
}

func New(store *state.Store, m *wallet.Manager, l *ledger.Ledger, r *rules.Engine, b *broker.Broker, demoMode bool, log *zap.Logger) *Catalog {
	c := &Catalog{
		store:    store,
		manager:  m,
		ledger:   l,
		rules:    r,
		broker:   b,
		demoMode: demoMode,
		log:      log,
	}
	c.ops = c.catalog()
	return c
}

// Operations lists the catalog sorted by name, for the stdio binding's
// tool listing.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, 0, len(c.ops))
	for _, op := range c.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke dispatches one operation. In demo mode every non-read
// operation fails with ErrWriteDisabled before its handler runs.
func (c *Catalog) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	op, ok := c.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	if c.demoMode && !op.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrWriteDisabled, name)
	}
	out, err := op.handler(ctx, args)
	if err != nil {
		c.log.Debug("operation failed", zap.String("op", name), zap.Error(err))
	}
	return out, err
}

// WalletSummary is the roster entry shape every wallet-returning
// operation uses. The private key never leaves the store.
type WalletSummary struct {
	ID            string                `json:"id"`
	Label         string                `json:"label"`
	Address       string                `json:"address"`
	Frozen        bool                  `json:"frozen"`
	Adapter       string                `json:"adapter"`
	CreatedAt     string                `json:"createdAt"`
	AgentIdentity *models.AgentIdentity `json:"agentIdentity"`
}

func summarize(w models.WalletEntry) WalletSummary {
	return WalletSummary{
		ID:            w.ID,
		Label:         w.Label,
		Address:       w.AdapterConfig.Address,
		Frozen:        w.Frozen,
		Adapter:       string(w.AdapterConfig.Type),
		CreatedAt:     w.CreatedAt,
		AgentIdentity: w.AgentIdentity,
	}
}

// PayResult is the normalized payment envelope. Negotiation and signing
// failures come back as {status:0, error, body:null, payment:null}
// instead of a transport error, so agents always get one shape.
type PayResult struct {
	Status  int                 `json:"status"`
	Body    *string             `json:"body"`
	Payment *broker.PaymentInfo `json:"payment"`
	Error   string              `json:"error,omitempty"`
}

func payResult(result *broker.Result, err error) (any, error) {
	if err != nil {
		return PayResult{Status: 0, Error: err.Error()}, nil
	}
	body := result.Body
	return PayResult{
		Status:  result.Status,
		Body:    &body,
		Payment: result.Payment,
	}, nil
}

func decode(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

type payRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	Reason  string            `json:"reason"`
}

func (r payRequest) options() broker.FetchOptions {
	return broker.FetchOptions{
		Method:  r.Method,
		Headers: r.Headers,
		Body:    r.Body,
		Reason:  r.Reason,
	}
}

func (c *Catalog) catalog() map[string]Operation {
	ops := []Operation{
		{
			Name:        "config",
			Description: "Report broker configuration flags.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				return map[string]any{"demoMode": c.demoMode}, nil
			},
		},
		{
			Name:        "listWallets",
			Description: "List all wallets and the active wallet id.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				entries, activeID := c.manager.List()
				wallets := make([]WalletSummary, 0, len(entries))
				for _, w := range entries {
					wallets = append(wallets, summarize(w))
				}
				return map[string]any{
					"wallets":        wallets,
					"activeWalletId": activeID,
				}, nil
			},
		},
		{
			Name:        "createWallet",
			Description: "Create a wallet for the given adapter and make it active.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					Adapter     string            `json:"adapter"`
					Label       string            `json:"label"`
					Credentials map[string]string `json:"credentials"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.Adapter == "" {
					return nil, fmt.Errorf("%w: adapter is required", ErrValidation)
				}
				cfg := credentialsToConfig(models.AdapterType(req.Adapter), req.Credentials)
				entry, err := c.manager.Create(ctx, cfg, req.Label)
				if err != nil {
					return nil, err
				}
				return summarize(entry), nil
			},
		},
		{
			Name:        "switchWallet",
			Description: "Make the identified wallet active.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					WalletID string `json:"walletId"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.WalletID == "" {
					return nil, fmt.Errorf("%w: walletId is required", ErrValidation)
				}
				w, err := c.manager.Switch(req.WalletID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"activeWalletId": w.ID, "label": w.Label}, nil
			},
		},
		{
			Name:        "renameWallet",
			Description: "Relabel the active wallet.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					Label string `json:"label"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.Label == "" {
					return nil, fmt.Errorf("%w: label is required", ErrValidation)
				}
				w, err := c.manager.Rename(req.Label)
				if err != nil {
					return nil, err
				}
				return map[string]any{"label": w.Label}, nil
			},
		},
		{
			Name:        "removeWallet",
			Description: "Delete a wallet; the first remaining wallet becomes active.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					WalletID string `json:"walletId"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.WalletID == "" {
					return nil, fmt.Errorf("%w: walletId is required", ErrValidation)
				}
				if err := c.manager.Remove(req.WalletID); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": true}, nil
			},
		},
		{
			Name:        "getWallet",
			Description: "Summarize the active wallet, null when none exists.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				w, ok := c.store.ActiveWallet()
				if !ok {
					return map[string]any{"wallet": nil, "adapter": nil}, nil
				}
				summary := summarize(w)
				return map[string]any{"wallet": summary, "adapter": summary.Adapter}, nil
			},
		},
		{
			Name:        "getNetwork",
			Description: "Report the selected network.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				return map[string]any{"network": string(c.store.Network())}, nil
			},
		},
		{
			Name:        "setNetwork",
			Description: "Select base or base-sepolia.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					Network string `json:"network"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if err := c.store.SetNetwork(models.Network(req.Network)); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrValidation, err)
				}
				return map[string]any{"network": req.Network}, nil
			},
		},
		{
			Name:        "getBalance",
			Description: "Read the active wallet's USDC balance.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					Network string `json:"network"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				var caip2 string
				if req.Network != "" {
					var err error
					caip2, err = models.Network(req.Network).Caip2()
					if err != nil {
						return nil, fmt.Errorf("%w: %v", ErrValidation, err)
					}
				}
				balance, usedCaip2, err := c.manager.Balance(ctx, caip2)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"balance": balance,
					"network": usedCaip2,
				}, nil
			},
		},
		{
			Name:        "getRules",
			Description: "Read the active wallet's spending rules.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				return c.rules.Get()
			},
		},
		{
			Name:        "setRules",
			Description: "Partially update the active wallet's spending rules.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				patch, err := decodeRulesPatch(args)
				if err != nil {
					return nil, err
				}
				return c.rules.Set(patch)
			},
		},
		{
			Name:        "listTransactions",
			Description: "List the active wallet's transactions, newest first.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					Limit int `json:"limit"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				txs, err := c.ledger.List(req.Limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"transactions": txs}, nil
			},
		},
		{
			Name:        "todaySpent",
			Description: "Sum today's settled payments in USDC.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				total, err := c.ledger.TodaySpent()
				if err != nil {
					return nil, err
				}
				return map[string]any{"spent": usdc.Format(total)}, nil
			},
		},
		{
			Name:        "getAgentIdentity",
			Description: "Read the active wallet's agent identity.",
			ReadOnly:    true,
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				identity, err := c.manager.AgentIdentity()
				if err != nil {
					return nil, err
				}
				return map[string]any{"agentIdentity": identity}, nil
			},
		},
		{
			Name:        "setAgentIdentity",
			Description: "Set the active wallet's agent identity (name required).",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var identity models.AgentIdentity
				if err := decode(args, &identity); err != nil {
					return nil, err
				}
				set, err := c.manager.SetAgentIdentity(identity)
				if err != nil {
					return nil, err
				}
				return map[string]any{"agentIdentity": set}, nil
			},
		},
		{
			Name:        "pay",
			Description: "Fetch a paid resource, settling an x402 payment if required.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req payRequest
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.URL == "" {
					return nil, fmt.Errorf("%w: url is required", ErrValidation)
				}
				return payResult(c.broker.Fetch(ctx, req.URL, req.options()))
			},
		},
		{
			Name:        "payPrepare",
			Description: "Negotiate a payment and return the EIP-712 message for external signing.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req payRequest
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.URL == "" {
					return nil, fmt.Errorf("%w: url is required", ErrValidation)
				}
				return c.broker.Prepare(ctx, req.URL, req.options())
			},
		},
		{
			Name:        "payComplete",
			Description: "Submit the external signature and finish a prepared payment.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req struct {
					SessionID string `json:"sessionId"`
					Signature string `json:"signature"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				if req.SessionID == "" || req.Signature == "" {
					return nil, fmt.Errorf("%w: sessionId and signature are required", ErrValidation)
				}
				return payResult(c.broker.Complete(ctx, req.SessionID, req.Signature))
			},
		},
		{
			Name:        "freeze",
			Description: "Block payments from the active wallet.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				w, err := c.manager.Freeze()
				if err != nil {
					return nil, err
				}
				return map[string]any{"frozen": w.Frozen}, nil
			},
		},
		{
			Name:        "unfreeze",
			Description: "Allow payments from the active wallet again.",
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				w, err := c.manager.Unfreeze()
				if err != nil {
					return nil, err
				}
				return map[string]any{"frozen": w.Frozen}, nil
			},
		},
	}

	out := make(map[string]Operation, len(ops))
	for _, op := range ops {
		out[op.Name] = op
	}
	return out
}

// credentialsToConfig maps the flat credentials object of createWallet
// onto the adapter config variant.
func credentialsToConfig(kind models.AdapterType, credentials map[string]string) models.AdapterConfig {
	return models.AdapterConfig{
		Type:         kind,
		PrivateKey:   credentials["privateKey"],
		AppID:        credentials["appId"],
		AppSecret:    credentials["appSecret"],
		APIKeyID:     credentials["apiKeyId"],
		APIKeySecret: credentials["apiKeySecret"],
		APIKey:       credentials["apiKey"],
		WalletID:     credentials["walletId"],
		Address:      credentials["address"],
	}
}

// decodeRulesPatch distinguishes absent fields (leave alone) from
// explicit nulls (clear the limit), which a plain struct decode loses.
func decodeRulesPatch(args json.RawMessage) (rules.Patch, error) {
	var fields map[string]json.RawMessage
	if err := decode(args, &fields); err != nil {
		return rules.Patch{}, err
	}

	var patch rules.Patch
	limit := func(key string, dst ***string) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, key, err)
		}
		*dst = &v
		return nil
	}
	if err := limit("maxPerTransaction", &patch.MaxPerTransaction); err != nil {
		return rules.Patch{}, err
	}
	if err := limit("dailyCap", &patch.DailyCap); err != nil {
		return rules.Patch{}, err
	}

	list := func(key string, dst **[]string) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, key, err)
		}
		*dst = &v
		return nil
	}
	if err := list("allowedServices", &patch.AllowedServices); err != nil {
		return rules.Patch{}, err
	}
	if err := list("blockedServices", &patch.BlockedServices); err != nil {
		return rules.Patch{}, err
	}
	return patch, nil
}
