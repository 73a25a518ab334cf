// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache event labels.
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheMismatch    = "mismatch"
	CacheCorrupt     = "corrupt"
	CacheSaveFailed  = "save_failed"
	CacheSaved       = "saved"
	CacheClearFailed = "clear_failed"
)

// StateTransitions counts state changes.
// Use RegisterMetrics to register this with a Prometheus registry.
var StateTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authstate_transitions_total",
		Help: "Total number of authentication state transitions",
	},
	[]string{"from", "to"},
)

// FailuresPresented counts failures routed to the notifier.
// Use RegisterMetrics to register this with a Prometheus registry.
var FailuresPresented = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authstate_failures_presented_total",
		Help: "Total number of failures presented to the user by classification and retry action",
	},
	[]string{"classification", "retry"},
)

// CacheEvents counts user cache outcomes.
// Use RegisterMetrics to register this with a Prometheus registry.
var CacheEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authstate_cache_events_total",
		Help: "Total number of cached user reads and writes by outcome",
	},
	[]string{"event"},
)

// IgnoredEvents counts commands and results the machine dropped.
// Use RegisterMetrics to register this with a Prometheus registry.
var IgnoredEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authstate_ignored_events_total",
		Help: "Total number of duplicate commands and stale results ignored by the state machine",
	},
	[]string{"reason"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(StateTransitions)
	reg.MustRegister(FailuresPresented)
	reg.MustRegister(CacheEvents)
	reg.MustRegister(IgnoredEvents)
}

func recordCacheEvent(event string) {
	CacheEvents.WithLabelValues(event).Inc()
}

func recordTransition(from, to StateKind) {
	StateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func recordIgnored(reason string) {
	IgnoredEvents.WithLabelValues(reason).Inc()
}
