// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/auth/postgres"
	"github.com/holomush/authstate/internal/config"
	"github.com/holomush/authstate/internal/kvstore"
	"github.com/holomush/authstate/internal/netreach"
	"github.com/holomush/authstate/internal/observability"
	"github.com/holomush/authstate/internal/provider"
	"github.com/holomush/authstate/internal/store"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenStore opens the local key-value store.
	// Default: kvstore.OpenSQLite
	OpenStore func(ctx context.Context, path string) (KVStore, error)

	// OpenDirectory connects to the user directory. The returned function
	// releases the connection.
	// Default: store.Connect + postgres.NewDirectoryRepository
	OpenDirectory func(ctx context.Context, databaseURL string) (auth.Directory, func(), error)

	// NewStatusChecker creates the provider credential-status checker.
	// Default: provider.NewHTTPStatusChecker
	NewStatusChecker func(cfg config.ProviderConfig) (auth.StatusChecker, error)

	// NewMigrator creates a directory schema migrator.
	// Default: store.NewMigrator
	NewMigrator func(databaseURL string) (Migrator, error)

	// NewObservabilityServer creates the metrics/health server.
	// Default: observability.NewServer
	NewObservabilityServer func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer

	// Dialer is used by the reachability monitor.
	// Default: net.Dialer
	Dialer netreach.Dialer

	// LogOutput receives log records.
	// Default: os.Stderr
	LogOutput io.Writer
}

// KVStore is the local store used by the CLI: the auth key-value contract plus
// prefix removal for purgers.
type KVStore interface {
	auth.KeyValueStore
	kvstore.PrefixRemover
	Close() error
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenStore == nil {
		out.OpenStore = func(ctx context.Context, path string) (KVStore, error) {
			return kvstore.OpenSQLite(ctx, path)
		}
	}
	if out.OpenDirectory == nil {
		out.OpenDirectory = openPostgresDirectory
	}
	if out.NewStatusChecker == nil {
		out.NewStatusChecker = func(cfg config.ProviderConfig) (auth.StatusChecker, error) {
			return provider.NewHTTPStatusChecker(cfg.StatusURL, cfg.Timeout, nil)
		}
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.NewObservabilityServer == nil {
		out.NewObservabilityServer = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	return &out
}

func openPostgresDirectory(ctx context.Context, databaseURL string) (auth.Directory, func(), error) {
	pool, err := store.Connect(ctx, databaseURL, store.DefaultConnectConfig())
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewDirectoryRepository(pool), pool.Close, nil
}

// shutdownTimeout bounds graceful shutdown of servers.
const shutdownTimeout = 5 * time.Second
