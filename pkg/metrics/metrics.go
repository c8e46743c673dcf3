// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes broker counters on a dedicated Prometheus
// registry, served at /metrics by the HTTP binding.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the broker's counters.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsSettled prometheus.Counter
	PaymentsFailed  prometheus.Counter
	RuleViolations  *prometheus.CounterVec
	SessionsExpired prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PaymentsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clawlet",
			Name:      "payments_settled_total",
			Help:      "Payments that completed with a 2xx retry response.",
		}),
		PaymentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clawlet",
			Name:      "payments_failed_total",
			Help:      "Payments whose retry failed or errored.",
		}),
		RuleViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clawlet",
			Name:      "rule_violations_total",
			Help:      "Payments rejected by the spending rules, by kind.",
		}, []string{"kind"}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clawlet",
			Name:      "payment_sessions_expired_total",
			Help:      "Two-phase payment sessions dropped by the sweeper.",
		}),
	}
	m.registry.MustRegister(m.PaymentsSettled, m.PaymentsFailed, m.RuleViolations, m.SessionsExpired)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
