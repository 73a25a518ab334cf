// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/observability"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the session running with reachability probing and metrics",
		Long: `Start the state machine, probe reachability in the background and expose
/metrics and health probes on --metrics-addr until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, a)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app) error {
	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	var machine atomic.Pointer[auth.Machine]

	if a.cfg.MetricsAddr != "" {
		ready := func() bool {
			m := machine.Load()
			return m != nil && auth.Settled(m.Snapshot())
		}
		obsServer = a.deps.NewObservabilityServer(a.cfg.MetricsAddr, ready, auth.RegisterMetrics)
		metrics = obsServer.Metrics()
	}

	opts := sessionOptions{}
	if metrics != nil {
		opts.observeReachability = metrics.SetReachable
	}
	s, err := a.openSession(ctx, cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	machine.Store(s.machine)

	var errCh <-chan error
	if obsServer != nil {
		errCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", a.cfg.MetricsAddr).Wrap(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.monitor.Run(runCtx)
		}()
	}

	snapshots, unsubscribe := s.machine.Subscribe()
	defer unsubscribe()
	if metrics != nil {
		metrics.SetState(string(s.machine.State().Kind))
		if s.monitor == nil {
			metrics.SetReachable(true)
		}
	}

	if err := s.machine.Start(ctx); err != nil {
		return err
	}
	slog.Info("authstate serving", "metrics_addr", a.cfg.MetricsAddr, "store_path", a.cfg.StorePath)

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if metrics != nil {
				metrics.SetState(string(snap.State.Kind))
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
			}
			errCh = nil
		case <-ctx.Done():
			slog.Info("shutting down", "state", s.machine.State().String())
			return nil
		}
	}
}
