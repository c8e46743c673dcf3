// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/usdc"
	"github.com/luxfi/clawlet/pkg/utils"
	"github.com/luxfi/clawlet/pkg/x402"
)

// paymentSession connects a prepared-but-unsigned authorization to the
// signature an external wallet eventually supplies. Sessions live only
// in memory: a restart loses them on purpose, and the pending ledger
// entry plus expiry cleanup converges the state.
type paymentSession struct {
	id          string
	url         string
	opts        FetchOptions
	negotiation *negotiation
	auth        x402.Authorization
	txRecordID  string
	expiresAt   time.Time
}

// PrepareResult is everything a browser wallet needs to produce the
// EIP-712 signature, plus the session handle to complete with.
type PrepareResult struct {
	SessionID   string                   `json:"sessionId"`
	Domain      apitypes.TypedDataDomain `json:"domain"`
	Types       apitypes.Types           `json:"types"`
	PrimaryType string                   `json:"primaryType"`
	Message     map[string]string        `json:"message"`
	HumanAmount string                   `json:"humanAmount"`
	PayTo       string                   `json:"payTo"`
	Network     string                   `json:"network"`
}

// Prepare runs the negotiation and stops right before signing. The
// upstream must answer 402: a passthrough here means the caller used the
// two-phase flow on a free resource, which is a programming error.
func (b *Broker) Prepare(ctx context.Context, rawURL string, opts FetchOptions) (*PrepareResult, error) {
	if _, err := b.requireUnfrozen(); err != nil {
		return nil, err
	}

	n, passthrough, err := b.negotiate(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	if passthrough != nil {
		return nil, fmt.Errorf("%w: got status %d", ErrNot402, passthrough.Status)
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

	tx, err := b.appendPending(n, auth, opts.Reason)
	if err != nil {
		return nil, err
	}

	session := &paymentSession{
		id:          utils.RandomHex(16),
		url:         rawURL,
		opts:        opts,
		negotiation: n,
		auth:        auth,
		txRecordID:  tx.ID,
		expiresAt:   time.Unix(mustInt(auth.ValidBefore), 0),
	}

	b.mu.Lock()
	b.sessions[session.id] = session
	b.mu.Unlock()

	b.log.Info("prepared payment session",
		zap.String("sessionId", session.id),
		zap.String("service", n.service),
		zap.Time("expiresAt", session.expiresAt))

	return &PrepareResult{
		SessionID:   session.id,
		Domain:      x402.USDCDomain(n.chain),
		Types:       x402.TransferTypes(),
		PrimaryType: x402.TransferWithAuthorizationType,
		Message: map[string]string{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
		HumanAmount: usdc.Format(n.amountAtomic),
		PayTo:       n.accepted.PayTo,
		Network:     n.accepted.Network,
	}, nil
}

// Complete consumes a session with the externally produced signature and
// performs the retry. Sessions are one-shot: the entry is removed before
// the retry, so a concurrent double-submit gets ErrSessionNotFound.
func (b *Broker) Complete(ctx context.Context, sessionID, signature string) (*Result, error) {
	if _, err := b.requireUnfrozen(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	session, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if time.Now().After(session.expiresAt) {
		b.expireSession(session)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return b.retryWithPayment(ctx, session.url, session.opts, session.negotiation, session.auth, signature, session.txRecordID)
}

// RunSweeper drops expired sessions every sweep interval until the
// context ends. Safe to run alongside Complete: both serialize through
// the session mutex, and removal is the commit point.
func (b *Broker) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(constants.PaymentSessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.sweepExpired(now)
		}
	}
}

func (b *Broker) sweepExpired(now time.Time) {
	b.mu.Lock()
	var expired []*paymentSession
	for id, session := range b.sessions {
		if now.After(session.expiresAt) {
			expired = append(expired, session)
			delete(b.sessions, id)
		}
	}
	b.mu.Unlock()

	for _, session := range expired {
		b.expireSession(session)
	}
}

func (b *Broker) expireSession(session *paymentSession) {
	b.failEntry(session.txRecordID, expiredSessionReason)
	b.metrics.SessionsExpired.Inc()
	b.log.Info("expired payment session",
		zap.String("sessionId", session.id),
		zap.String("txId", session.txRecordID))
}

// mustInt parses the stringified unix timestamps this package builds.
func mustInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
