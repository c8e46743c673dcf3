// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broker drives the x402 handshake: issue the upstream request,
// parse the 402 offer, enforce the spending rules, sign an ERC-3009
// TransferWithAuthorization, retry with the payment headers, and record
// the outcome in the ledger. Server-signable wallets use the single-shot
// Fetch; browser wallets use the two-phase Prepare/Complete flow.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/metrics"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/rules"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/usdc"
	"github.com/luxfi/clawlet/pkg/utils"
	"github.com/luxfi/clawlet/pkg/wallet"
	"github.com/luxfi/clawlet/pkg/x402"
)

var (
	ErrFrozen             = errors.New("wallet is frozen")
	ErrNoCompatibleOption = errors.New("no compatible payment option")
	ErrNetworkMismatch    = errors.New("payment network does not match selected network")
	ErrNot402             = errors.New("upstream did not require payment")
	ErrSessionNotFound    = errors.New("payment session not found")
)

// expiredSessionReason is the ledger reason for sessions the sweeper or
// a late complete call gives up on.
const expiredSessionReason = "Payment session expired"

// Broker coordinates negotiation, signing, retry, and the ledger.
type Broker struct {
	store   *state.Store
	ledger  *ledger.Ledger
	rules   *rules.Engine
	manager *wallet.Manager
	metrics *metrics.Metrics
	log     *zap.Logger

	// client performs both the initial request and the retry. No broker
	// timeout is imposed; the caller's context bounds the work.
	client *http.Client

	mu       sync.Mutex
	sessions map[string]*paymentSession
}

func New(store *state.Store, l *ledger.Ledger, r *rules.Engine, m *wallet.Manager, mx *metrics.Metrics, log *zap.Logger) *Broker {
	return &Broker{
		store:    store,
		ledger:   l,
		rules:    r,
		manager:  m,
		metrics:  mx,
		log:      log,
		client:   &http.Client{},
		sessions: map[string]*paymentSession{},
	}
}

// SetHTTPClient overrides the upstream client, used by tests.
func (b *Broker) SetHTTPClient(c *http.Client) {
	b.client = c
}

// FetchOptions carries the caller's request shape plus an optional
// human-readable reason recorded alongside the ledger entry.
type FetchOptions struct {
	Method  string
	Headers map[string]string
	Body    string
	Reason  string
}

// PaymentInfo summarizes the payment attached to a result.
type PaymentInfo struct {
	TxHash *string `json:"txHash"`
	Amount string  `json:"amount"`
	PayTo  string  `json:"payTo"`
}

// Result is the upstream response handed back to the consumer. Payment
// is nil on a passthrough (non-402) response.
type Result struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Payment *PaymentInfo      `json:"payment"`
}

// negotiation is the outcome of a successful 402 handshake, rules
// already enforced.
type negotiation struct {
	doc          x402.PaymentRequiredDoc
	accepted     x402.PaymentRequirements
	chain        constants.ChainSpec
	service      string
	amountAtomic *big.Int
}

// Fetch performs the single-shot flow for server-signable wallets.
func (b *Broker) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Result, error) {
	if _, err := b.requireUnfrozen(); err != nil {
		return nil, err
	}

	n, passthrough, err := b.negotiate(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	if passthrough != nil {
		return passthrough, nil
	}

	a, _, err := b.manager.ActiveAdapter()
	if err != nil {
		return nil, err
	}
	from, err := a.Address()
	if err != nil {
		return nil, err
	}

	auth := buildAuthorization(from, n)

	// The pending entry lands before the signature so a crash while
	// signing leaves an auditable record.
	tx, err := b.appendPending(n, auth, opts.Reason)
	if err != nil {
		return nil, err
	}

	signature, err := a.SignTypedData(ctx, x402.TypedData(auth, n.chain))
	if err != nil {
		b.failEntry(tx.ID, fmt.Sprintf("Signing failed: %v", err))
		return nil, err
	}

	return b.retryWithPayment(ctx, rawURL, opts, n, auth, signature, tx.ID)
}

// negotiate issues the upstream request exactly once. A non-402 response
// comes back as a passthrough Result; a 402 is parsed, matched against
// the chain registry, checked against the selected network, and run
// through the rules engine.
func (b *Broker) negotiate(ctx context.Context, rawURL string, opts FetchOptions) (*negotiation, *Result, error) {
	req, err := b.buildRequest(ctx, rawURL, opts, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("upstream request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return nil, &Result{
			Status:  resp.StatusCode,
			Headers: flattenHeaders(resp.Header),
			Body:    string(body),
		}, nil
	}

	doc, err := x402.ParsePaymentRequired(resp.Header, body)
	if err != nil {
		return nil, nil, err
	}

	accepted, chainSpec, ok := selectOption(doc)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no exact-scheme USDC option on a supported chain", ErrNoCompatibleOption)
	}

	selected, err := b.store.NetworkCaip2()
	if err != nil {
		return nil, nil, err
	}
	if accepted.Network != selected {
		return nil, nil, fmt.Errorf("%w: server wants %s, selected network is %s",
			ErrNetworkMismatch, accepted.Network, selected)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	service := parsed.Hostname()

	amountAtomic, err := usdc.ParseAtomic(accepted.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid offer amount: %w", err)
	}

	if err := b.rules.Enforce(amountAtomic, service); err != nil {
		if kind := rules.ViolationKind(err); kind != "" {
			b.metrics.RuleViolations.WithLabelValues(kind).Inc()
		}
		return nil, nil, err
	}

	return &negotiation{
		doc:          doc,
		accepted:     accepted,
		chain:        chainSpec,
		service:      service,
		amountAtomic: amountAtomic,
	}, nil, nil
}

// selectOption picks the first accepts entry with the exact scheme, a
// recognized chain, and that chain's USDC as asset.
func selectOption(doc x402.PaymentRequiredDoc) (x402.PaymentRequirements, constants.ChainSpec, bool) {
	for _, option := range doc.Accepts {
		if option.Scheme != "exact" {
			continue
		}
		spec, ok := constants.ChainByCaip2(option.Network)
		if !ok {
			continue
		}
		if !strings.EqualFold(option.Asset, spec.USDCAddress) {
			continue
		}
		return option, spec, true
	}
	return x402.PaymentRequirements{}, constants.ChainSpec{}, false
}

// buildAuthorization assembles the ERC-3009 message for the accepted
// offer, valid from now until the server's declared timeout.
func buildAuthorization(from string, n *negotiation) x402.Authorization {
	now := time.Now().Unix()
	timeout := n.accepted.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 600
	}
	return x402.Authorization{
		From:        from,
		To:          n.accepted.PayTo,
		Value:       n.amountAtomic.String(),
		ValidAfter:  fmt.Sprintf("%d", now),
		ValidBefore: fmt.Sprintf("%d", now+timeout),
		Nonce:       hexutil.Encode(utils.RandomBytes(32)),
	}
}

// retryWithPayment re-issues the request with the signed payment headers
// and transitions the ledger entry on the outcome.
func (b *Broker) retryWithPayment(ctx context.Context, rawURL string, opts FetchOptions, n *negotiation, auth x402.Authorization, signature, txID string) (*Result, error) {
	envelope := x402.PaymentEnvelope{
		X402Version: n.doc.X402Version,
		Resource:    n.doc.Resource,
		Accepted:    n.accepted,
		Payload: x402.PaymentPayload{
			Signature:     signature,
			Authorization: auth,
		},
	}
	encoded, err := x402.EncodeEnvelope(envelope)
	if err != nil {
		b.failEntry(txID, fmt.Sprintf("Failed to encode payment: %v", err))
		return nil, err
	}

	extra := map[string]string{
		constants.PaymentSignatureHeader: encoded,
		constants.XPaymentHeader:         encoded,
	}
	b.addAgentHeaders(extra)

	req, err := b.buildRequest(ctx, rawURL, opts, extra)
	if err != nil {
		b.failEntry(txID, fmt.Sprintf("Failed to build retry: %v", err))
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.failEntry(txID, fmt.Sprintf("Retry failed: %v", err))
		return nil, fmt.Errorf("payment retry failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		b.failEntry(txID, fmt.Sprintf("Failed to read retry response: %v", err))
		return nil, err
	}

	txHash := x402.ExtractReceiptHash(resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := b.ledger.Update(txID, ledger.Patch{Status: models.TxSettled, TxHash: txHash}); err != nil {
			return nil, err
		}
		b.metrics.PaymentsSettled.Inc()
		b.log.Info("payment settled",
			zap.String("service", n.service),
			zap.String("amount", usdc.Format(n.amountAtomic)),
			zap.Stringp("txHash", txHash))
	} else {
		reason := fmt.Sprintf("Upstream rejected payment with status %d", resp.StatusCode)
		b.failEntry(txID, reason)
	}

	return &Result{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    string(body),
		Payment: &PaymentInfo{
			TxHash: txHash,
			Amount: usdc.Format(n.amountAtomic),
			PayTo:  n.accepted.PayTo,
		},
	}, nil
}

// addAgentHeaders announces the agent identity on the retry when both
// the on-chain id and the registry are configured.
func (b *Broker) addAgentHeaders(headers map[string]string) {
	w, ok := b.store.ActiveWallet()
	if !ok || w.AgentIdentity == nil {
		return
	}
	identity := w.AgentIdentity
	if identity.AgentID == "" || identity.AgentRegistry == "" {
		return
	}
	headers[constants.AgentIDHeader] = identity.AgentID
	headers[constants.AgentRegistryHeader] = identity.AgentRegistry
	if identity.Name != "" {
		headers[constants.AgentNameHeader] = identity.Name
	}
}

func (b *Broker) buildRequest(ctx context.Context, rawURL string, opts FetchOptions, extra map[string]string) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	return req, nil
}

// appendPending records the payment before any signature exists.
func (b *Broker) appendPending(n *negotiation, auth x402.Authorization, reason string) (models.Transaction, error) {
	return b.ledger.Add(ledger.AddParams{
		Payee:   auth.To,
		Service: n.service,
		Amount:  usdc.Format(n.amountAtomic),
		Asset:   n.accepted.Asset,
		Network: n.accepted.Network,
		Status:  models.TxPending,
		Reason:  reason,
	})
}

// failEntry transitions a ledger entry to failed, logging rather than
// propagating secondary errors: the primary failure is what the caller
// needs to see.
func (b *Broker) failEntry(txID, reason string) {
	if _, err := b.ledger.Update(txID, ledger.Patch{
		Status: models.TxFailed,
		Reason: &reason,
	}); err != nil {
		b.log.Warn("failed to mark ledger entry failed",
			zap.String("txId", txID), zap.Error(err))
	}
	b.metrics.PaymentsFailed.Inc()
}

func (b *Broker) requireUnfrozen() (models.WalletEntry, error) {
	w, err := b.store.RequireActive()
	if err != nil {
		return models.WalletEntry{}, err
	}
	if w.Frozen {
		return models.WalletEntry{}, fmt.Errorf("%w: unfreeze it to pay", ErrFrozen)
	}
	return w, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
