// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server exposes the operation catalog over two bindings: a
// JSON-over-HTTP router and a line-delimited stdio tool protocol. Both
// dispatch through the same catalog, so behavior never diverges between
// them.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/pkg/broker"
	"github.com/luxfi/clawlet/pkg/metrics"
	"github.com/luxfi/clawlet/pkg/rules"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/tools"
	"github.com/luxfi/clawlet/pkg/wallet"
)

// HTTP is the JSON binding. Operations live under /api/{op}: reads
// answer GET and POST, writes answer POST only in the sense that a GET
// carries no arguments.
type HTTP struct {
	catalog *tools.Catalog
	metrics *metrics.Metrics
	store   *state.Store
	log     *zap.Logger
}

func NewHTTP(catalog *tools.Catalog, m *metrics.Metrics, store *state.Store, log *zap.Logger) *HTTP {
	return &HTTP{catalog: catalog, metrics: m, store: store, log: log}
}

// Router builds the mux router with the operation routes, the health
// probe, and the metrics endpoint.
func (h *HTTP) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	// Legacy alias kept for old dashboard consumers.
	r.HandleFunc("/api/wallet", h.operation("getWallet")).Methods(http.MethodGet)
	r.HandleFunc("/api/{op}", h.handleOperation).Methods(http.MethodGet, http.MethodPost)
	return r
}

func (h *HTTP) handleOperation(w http.ResponseWriter, r *http.Request) {
	h.invoke(w, r, mux.Vars(r)["op"])
}

func (h *HTTP) operation(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.invoke(w, r, name)
	}
}

func (h *HTTP) invoke(w http.ResponseWriter, r *http.Request, name string) {
	var args json.RawMessage
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		args = body
	}

	out, err := h.catalog.Invoke(r.Context(), name, args)
	if err != nil {
		h.log.Debug("operation error",
			zap.String("op", name),
			zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTP) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, hasWallet := h.store.ActiveWallet()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"network":   string(h.store.Network()),
		"hasWallet": hasWallet,
	})
}

// statusFor maps catalog errors onto HTTP statuses: 400 for validation
// and rule errors, 403 for demo-mode writes, 404 for unknown
// operations, 500 otherwise.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tools.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrWriteDisabled):
		return http.StatusForbidden
	case errors.Is(err, tools.ErrValidation),
		rules.IsViolation(err),
		errors.Is(err, state.ErrNoActiveWallet),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, wallet.ErrAgentNameRequired),
		errors.Is(err, broker.ErrFrozen),
		errors.Is(err, broker.ErrNot402),
		errors.Is(err, broker.ErrSessionNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
