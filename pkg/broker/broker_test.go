// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/constants"
	"github.com/luxfi/clawlet/pkg/ledger"
	"github.com/luxfi/clawlet/pkg/metrics"
	"github.com/luxfi/clawlet/pkg/models"
	"github.com/luxfi/clawlet/pkg/rules"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/wallet"
)

type fixture struct {
	store   *state.Store
	ledger  *ledger.Ledger
	rules   *rules.Engine
	manager *wallet.Manager
	broker  *Broker
}

func newFixture(t *testing.T, adapterCfg models.AdapterConfig) *fixture {
	t.Helper()
	s, err := state.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SetNetwork(models.BaseSepolia))

	l := ledger.New(s)
	m := wallet.NewManager(s, zap.NewNop())
	r := rules.New(s, l)

	_, err = m.Create(context.Background(), adapterCfg, "")
	require.NoError(t, err)

	b := New(s, l, r, m, metrics.New(), zap.NewNop())
	return &fixture{store: s, ledger: l, rules: r, manager: m, broker: b}
}

func localKeyFixture(t *testing.T) *fixture {
	return newFixture(t, models.AdapterConfig{Type: models.AdapterLocalKey})
}

// upstream is a fake x402 server: a request without payment headers gets
// a 402 offer, a request carrying X-PAYMENT gets the paid content plus a
// settlement receipt.
type upstream struct {
	server *httptest.Server

	offerNetwork string
	offerAsset   string
	offerAmount  string
	timeout      int64
	inBody       bool

	requests    atomic.Int32
	retries     atomic.Int32
	mu          sync.Mutex
	lastPayment string
	lastHeaders http.Header
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{
		offerNetwork: constants.Caip2BaseSepolia,
		offerAsset:   constants.Chains[constants.Caip2BaseSepolia].USDCAddress,
		offerAmount:  "100000",
		timeout:      600,
	}
	u.server = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) handle(w http.ResponseWriter, r *http.Request) {
	u.requests.Add(1)

	if payment := r.Header.Get("X-Payment"); payment != "" {
		u.retries.Add(1)
		u.mu.Lock()
		u.lastPayment = payment
		u.lastHeaders = r.Header.Clone()
		u.mu.Unlock()

		receipt := base64.StdEncoding.EncodeToString([]byte(`{"transaction":"0xab12"}`))
		w.Header().Set("payment-response", receipt)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "paid content")
		return
	}

	doc := fmt.Sprintf(`{
	  "x402Version": 1,
	  "accepts": [{
	    "scheme": "exact",
	    "network": %q,
	    "asset": %q,
	    "amount": %q,
	    "payTo": "0x00000000000000000000000000000000000000aa",
	    "maxTimeoutSeconds": %d
	  }],
	  "resource": "https://api.example/data"
	}`, u.offerNetwork, u.offerAsset, u.offerAmount, u.timeout)

	if u.inBody {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, doc)
		return
	}
	w.Header().Set("payment-required", base64.StdEncoding.EncodeToString([]byte(doc)))
	w.WriteHeader(http.StatusPaymentRequired)
}

func TestFetchHappyPath(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	result, err := f.broker.Fetch(context.Background(), u.server.URL+"/data", FetchOptions{})
	require.NoError(err)
	require.Equal(http.StatusOK, result.Status)
	require.Equal("paid content", result.Body)
	require.NotNil(result.Payment)
	require.Equal("0.1", result.Payment.Amount)
	require.Equal("0x00000000000000000000000000000000000000aa", result.Payment.PayTo)
	require.NotNil(result.Payment.TxHash)
	require.Equal("0xab12", *result.Payment.TxHash)

	// One ledger entry, settled, on the Sepolia network.
	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(models.TxSettled, txs[0].Status)
	require.Equal("0.1", txs[0].Amount)
	require.Equal("eip155:84532", txs[0].Network)
	require.Equal("0xab12", *txs[0].TxHash)

	// Both payment header spellings carry the same envelope.
	u.mu.Lock()
	defer u.mu.Unlock()
	require.Equal(u.lastPayment, u.lastHeaders.Get("Payment-Signature"))

	raw, err := base64.StdEncoding.DecodeString(u.lastPayment)
	require.NoError(err)
	var envelope map[string]any
	require.NoError(json.Unmarshal(raw, &envelope))
	require.Equal(float64(1), envelope["x402Version"])
	payload := envelope["payload"].(map[string]any)
	auth := payload["authorization"].(map[string]any)
	require.Equal("100000", auth["value"])
	require.Len(auth["nonce"].(string), 66)
	require.NotEmpty(payload["signature"])
}

func TestFetchPassthrough(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "free content")
	}))
	defer server.Close()

	result, err := f.broker.Fetch(context.Background(), server.URL, FetchOptions{})
	require.NoError(err)
	require.Equal(http.StatusOK, result.Status)
	require.Equal("free content", result.Body)
	require.Nil(result.Payment)

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Empty(txs)
}

func TestFetchOfferInBody(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)
	u.inBody = true

	result, err := f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.NoError(err)
	require.Equal(http.StatusOK, result.Status)
}

func TestFetchOverDailyCap(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	dailyCap := "0.10"
	capPtr := &dailyCap
	_, err := f.rules.Set(rules.Patch{DailyCap: &capPtr})
	require.NoError(err)

	// 0.09 USDC already settled today.
	_, err = f.ledger.Add(ledger.AddParams{
		Payee: "0xp", Service: "a.example", Amount: "0.09",
		Asset: u.offerAsset, Network: u.offerNetwork, Status: models.TxSettled,
	})
	require.NoError(err)

	_, err = f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.ErrorIs(err, rules.ErrOverDaily)

	// No retry went out and no new entry was appended.
	require.Equal(int32(0), u.retries.Load())
	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(txs, 1)
}

func TestFetchBlockedService(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	blocked := []string{"127.0.0.1"}
	_, err := f.rules.Set(rules.Patch{BlockedServices: &blocked})
	require.NoError(err)

	_, err = f.broker.Fetch(context.Background(), u.server.URL+"/x", FetchOptions{})
	require.ErrorIs(err, rules.ErrBlocked)
	require.Equal(int32(0), u.retries.Load())

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Empty(txs)
}

func TestFetchNetworkMismatch(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	// Wallet selects mainnet; the server only accepts Sepolia USDC.
	require.NoError(f.store.SetNetwork(models.Base))

	_, err := f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.ErrorIs(err, ErrNetworkMismatch)
	require.Contains(err.Error(), "eip155:84532")
	require.Contains(err.Error(), "eip155:8453")

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Empty(txs)
}

func TestFetchNoCompatibleOption(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)
	u.offerAsset = "0x000000000000000000000000000000000000dead"

	_, err := f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.ErrorIs(err, ErrNoCompatibleOption)
}

func TestFetchFrozenWallet(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	_, err := f.manager.Freeze()
	require.NoError(err)

	_, err = f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.ErrorIs(err, ErrFrozen)

	// Frozen gate fires before any outbound request or ledger write.
	require.Equal(int32(0), u.requests.Load())
	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Empty(txs)
}

func TestFetchRetryRejected(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Payment") != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		doc := fmt.Sprintf(`{"x402Version":1,"accepts":[{"scheme":"exact","network":%q,"asset":%q,"amount":"100000","payTo":"0xaa","maxTimeoutSeconds":600}]}`,
			constants.Caip2BaseSepolia, constants.Chains[constants.Caip2BaseSepolia].USDCAddress)
		w.Header().Set("payment-required", base64.StdEncoding.EncodeToString([]byte(doc)))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	result, err := f.broker.Fetch(context.Background(), server.URL, FetchOptions{})
	require.NoError(err)
	require.Equal(http.StatusForbidden, result.Status)

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(models.TxFailed, txs[0].Status)
	require.Contains(txs[0].Reason, "403")
}

func TestFetchAgentHeaders(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	_, err := f.manager.SetAgentIdentity(models.AgentIdentity{
		Name:          "shopbot",
		AgentID:       "42",
		AgentRegistry: "eip155:84532:0xregistry",
	})
	require.NoError(err)

	_, err = f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.NoError(err)

	u.mu.Lock()
	defer u.mu.Unlock()
	require.Equal("42", u.lastHeaders.Get("X-Agent-Id"))
	require.Equal("eip155:84532:0xregistry", u.lastHeaders.Get("X-Agent-Registry"))
	require.Equal("shopbot", u.lastHeaders.Get("X-Agent-Name"))
}

func TestFetchNameOnlyIdentitySendsNoHeaders(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)

	_, err := f.manager.SetAgentIdentity(models.AgentIdentity{Name: "quiet"})
	require.NoError(err)

	_, err = f.broker.Fetch(context.Background(), u.server.URL, FetchOptions{})
	require.NoError(err)

	u.mu.Lock()
	defer u.mu.Unlock()
	require.Empty(u.lastHeaders.Get("X-Agent-Id"))
	require.Empty(u.lastHeaders.Get("X-Agent-Name"))
}

func browserFixture(t *testing.T) *fixture {
	return newFixture(t, models.AdapterConfig{
		Type:    models.AdapterBrowser,
		Address: "0x00000000000000000000000000000000000000f1",
	})
}

func TestTwoPhaseFlow(t *testing.T) {
	require := require.New(t)
	f := browserFixture(t)
	u := newUpstream(t)
	ctx := context.Background()

	prep, err := f.broker.Prepare(ctx, u.server.URL+"/data", FetchOptions{Reason: "research"})
	require.NoError(err)
	require.Len(prep.SessionID, 32)
	require.Equal("TransferWithAuthorization", prep.PrimaryType)
	require.Equal("USDC", prep.Domain.Name)
	require.Equal("0.1", prep.HumanAmount)
	require.Equal("eip155:84532", prep.Network)
	require.Equal("100000", prep.Message["value"])

	// Entry is pending while the signature is outstanding.
	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(models.TxPending, txs[0].Status)
	require.Equal("research", txs[0].Reason)

	result, err := f.broker.Complete(ctx, prep.SessionID, "0x"+"11")
	require.NoError(err)
	require.Equal(http.StatusOK, result.Status)
	require.Equal("0xab12", *result.Payment.TxHash)

	txs, err = f.ledger.List(0)
	require.NoError(err)
	require.Equal(models.TxSettled, txs[0].Status)

	// One-shot: the second complete finds nothing.
	_, err = f.broker.Complete(ctx, prep.SessionID, "0x"+"11")
	require.ErrorIs(err, ErrSessionNotFound)
}

func TestPrepareOnFreeResource(t *testing.T) {
	require := require.New(t)
	f := browserFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := f.broker.Prepare(context.Background(), server.URL, FetchOptions{})
	require.ErrorIs(err, ErrNot402)
}

func TestConcurrentCompleteOneWins(t *testing.T) {
	require := require.New(t)
	f := browserFixture(t)
	u := newUpstream(t)
	ctx := context.Background()

	prep, err := f.broker.Prepare(ctx, u.server.URL, FetchOptions{})
	require.NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.broker.Complete(ctx, prep.SessionID, "0x22")
		}(i)
	}
	wg.Wait()

	var successes, notFound int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(err, ErrSessionNotFound)
			notFound++
		}
	}
	require.Equal(1, successes)
	require.Equal(1, notFound)
	require.Equal(int32(1), u.retries.Load())
}

func TestSessionExpiry(t *testing.T) {
	require := require.New(t)
	f := browserFixture(t)
	u := newUpstream(t)
	ctx := context.Background()

	prep, err := f.broker.Prepare(ctx, u.server.URL, FetchOptions{})
	require.NoError(err)

	// Sweep as if the validity window had elapsed.
	f.broker.sweepExpired(time.Now().Add(2 * time.Hour))

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(models.TxFailed, txs[0].Status)
	require.Equal("Payment session expired", txs[0].Reason)

	_, err = f.broker.Complete(ctx, prep.SessionID, "0x33")
	require.ErrorIs(err, ErrSessionNotFound)
	require.Equal(int32(0), u.retries.Load())
}

func TestCompleteAfterExpiryMarksFailed(t *testing.T) {
	require := require.New(t)
	f := browserFixture(t)
	u := newUpstream(t)
	ctx := context.Background()

	prep, err := f.broker.Prepare(ctx, u.server.URL, FetchOptions{})
	require.NoError(err)

	// Force the session past its window without sweeping.
	f.broker.mu.Lock()
	f.broker.sessions[prep.SessionID].expiresAt = time.Now().Add(-time.Second)
	f.broker.mu.Unlock()

	_, err = f.broker.Complete(ctx, prep.SessionID, "0x44")
	require.ErrorIs(err, ErrSessionNotFound)

	txs, err := f.ledger.List(0)
	require.NoError(err)
	require.Equal(models.TxFailed, txs[0].Status)
	require.Equal("Payment session expired", txs[0].Reason)
}

func TestLedgerMonotonicity(t *testing.T) {
	require := require.New(t)
	f := localKeyFixture(t)
	u := newUpstream(t)
	ctx := context.Background()

	before, err := f.ledger.List(0)
	require.NoError(err)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := f.broker.Fetch(ctx, u.server.URL+fmt.Sprintf("/r%d", i), FetchOptions{})
		require.NoError(err)
	}

	after, err := f.ledger.List(0)
	require.NoError(err)
	require.Len(after, len(before)+n)
	for _, tx := range after {
		require.Equal(models.TxSettled, tx.Status)
	}
}
