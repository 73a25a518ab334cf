// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/samber/oops"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/kvstore"
	"github.com/holomush/authstate/internal/netreach"
)

// session is a running state machine with everything it was built from.
type session struct {
	store     KVStore
	directory auth.Directory
	machine   *auth.Machine
	monitor   *netreach.Monitor
	notes     *notificationPrinter

	closeDirectory func()
}

type sessionOptions struct {
	// observeReachability receives every probe result of the monitor.
	observeReachability func(up bool)
}

// openSession builds the machine from the loaded configuration. When a
// reachability probe is configured it runs once before the machine starts.
func (a *app) openSession(ctx context.Context, notices io.Writer, opts sessionOptions) (*session, error) {
	cfg := a.cfg
	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if cfg.Provider.StatusURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("provider.status_url is required")
	}

	status, err := a.deps.NewStatusChecker(cfg.Provider)
	if err != nil {
		return nil, err
	}

	s := &session{notes: &notificationPrinter{w: notices}}

	s.store, err = a.deps.OpenStore(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}

	s.directory, s.closeDirectory, err = a.deps.OpenDirectory(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	var reach auth.Reachability = netreach.NewStatic(true)
	if cfg.Reachability.ProbeAddr != "" {
		monitorOpts := []netreach.MonitorOption{netreach.WithLogger(a.logger)}
		if a.deps.Dialer != nil {
			monitorOpts = append(monitorOpts, netreach.WithDialer(a.deps.Dialer))
		}
		if opts.observeReachability != nil {
			monitorOpts = append(monitorOpts, netreach.WithObserver(opts.observeReachability))
		}
		s.monitor, err = netreach.NewMonitor(cfg.Reachability.ProbeAddr, cfg.Reachability.Interval, cfg.Reachability.Timeout, monitorOpts...)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.monitor.Probe(ctx)
		reach = s.monitor
	}

	purgers := make([]auth.Purger, 0, len(cfg.PurgePrefixes))
	for _, prefix := range cfg.PurgePrefixes {
		p, err := kvstore.NewPrefixPurger(s.store, prefix, a.logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		purgers = append(purgers, p)
	}

	s.machine, err = auth.NewMachine(auth.Deps{
		Store:        s.store,
		Directory:    s.directory,
		Status:       status,
		Reachability: reach,
		Notifier:     s.notes,
		Purgers:      purgers,
	}, auth.WithLogger(a.logger), auth.WithLocale(cfg.LocaleTag()))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// settle waits until the machine leaves the loading state.
func (s *session) settle(ctx context.Context, timeout time.Duration) (auth.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.machine.Await(ctx, auth.Settled)
}

// Close stops the machine and releases the store and directory.
func (s *session) Close() error {
	var errs []error
	if s.machine != nil {
		errs = append(errs, s.machine.Close())
	}
	if s.closeDirectory != nil {
		s.closeDirectory()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// notificationPrinter writes failure notifications for the user and keeps the
// most recent one.
type notificationPrinter struct {
	w    io.Writer
	mu   sync.Mutex
	last *auth.Notification
}

func (p *notificationPrinter) Notify(_ context.Context, n auth.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &n

	title := color.New(color.FgRed, color.Bold).Sprint(n.Title)
	if n.Classification == auth.ClassNetwork {
		title = color.New(color.FgYellow, color.Bold).Sprint(n.Title)
	}
	_, _ = fmt.Fprintf(p.w, "%s: %s\n", title, n.Message)
	if hint := retryHint(n.Retry); hint != "" {
		_, _ = fmt.Fprintf(p.w, "  %s\n", color.New(color.Faint).Sprint(hint))
	}
}

// Last returns the most recent notification.
func (p *notificationPrinter) Last() (auth.Notification, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return auth.Notification{}, false
	}
	return *p.last, true
}

func retryHint(action auth.RetryAction) string {
	switch action.Op {
	case auth.RetryStart:
		return "retry: start again"
	case auth.RetryLookup:
		return "retry: look up " + action.ProviderID + " in the directory again"
	case auth.RetryResetToIdle:
		return "retry: sign in again"
	default:
		return ""
	}
}

// settleWithRetries settles, then runs the retry action of the latest
// notification up to retries times while the machine is in the error state.
func (s *session) settleWithRetries(ctx context.Context, timeout time.Duration, retries int) (auth.Snapshot, error) {
	snap, err := s.settle(ctx, timeout)
	for attempt := 0; err == nil && attempt < retries && snap.State.Kind == auth.KindError; attempt++ {
		n, ok := s.notes.Last()
		if !ok || n.Retry.Op == auth.RetryResetToIdle {
			break
		}
		if err := n.Retry.Bind(ctx, s.machine)(); err != nil {
			return snap, err
		}
		snap, err = s.settle(ctx, timeout)
	}
	return snap, err
}
