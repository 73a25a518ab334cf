// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package netreach reports network reachability to the auth machine.
package netreach

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Static is a reachability value set by the caller.
type Static struct {
	up atomic.Bool
}

// NewStatic creates a Static reporting up.
func NewStatic(up bool) *Static {
	s := &Static{}
	s.up.Store(up)
	return s
}

// IsReachable reports the last value passed to Set.
func (s *Static) IsReachable() bool {
	return s.up.Load()
}

// Set changes the reported value.
func (s *Static) Set(up bool) {
	s.up.Store(up)
}

// Dialer opens probe connections. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Monitor probes a TCP address periodically and reports whether the last
// probe succeeded. It reports reachable until the first probe completes.
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dialer   Dialer
	logger   *slog.Logger
	observe  func(up bool)

	up atomic.Bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithDialer replaces the dialer used for probes.
func WithDialer(d Dialer) MonitorOption {
	return func(m *Monitor) { m.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver calls fn with the result of every probe.
func WithObserver(fn func(up bool)) MonitorOption {
	return func(m *Monitor) { m.observe = fn }
}

// NewMonitor creates a Monitor probing addr every interval, each probe bounded by timeout.
func NewMonitor(addr string, interval, timeout time.Duration, opts ...MonitorOption) (*Monitor, error) {
	if addr == "" {
		return nil, oops.Code("NETREACH_INVALID").Errorf("probe address is required")
	}
	if interval <= 0 || timeout <= 0 {
		return nil, oops.Code("NETREACH_INVALID").
			With("interval", interval).
			With("timeout", timeout).
			Errorf("interval and timeout must be positive")
	}
	m := &Monitor{
		addr:     addr,
		interval: interval,
		timeout:  timeout,
		dialer:   &net.Dialer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "netreach", "probe_addr", addr)
	m.up.Store(true)
	return m, nil
}

// IsReachable reports the result of the last probe.
func (m *Monitor) IsReachable() bool {
	return m.up.Load()
}

// Probe runs one probe and records its result.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	up := err == nil
	if up {
		_ = conn.Close()
	}
	if prev := m.up.Swap(up); prev != up {
		if up {
			m.logger.InfoContext(ctx, "network reachable")
		} else {
			m.logger.WarnContext(ctx, "network unreachable", "error", err)
		}
	}
	if m.observe != nil {
		m.observe(up)
	}
	return up
}

// Run probes immediately and then every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
