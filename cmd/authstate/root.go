// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/config"
	"github.com/holomush/authstate/internal/logging"
	"github.com/holomush/authstate/internal/xdg"
)

// app is shared by all subcommands. cfg and logger are set before any
// subcommand runs.
type app struct {
	deps       *Deps
	configFile string
	defaults   config.Config
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCmd creates the root command for the authstate CLI. A nil deps uses
// the default implementations.
func NewRootCmd(deps *Deps) *cobra.Command {
	a := &app{
		deps:     deps.withDefaults(),
		defaults: config.Defaults(defaultStorePath()),
	}

	cmd := &cobra.Command{
		Use:   "authstate",
		Short: "Provider sign-in, user directory and local session state",
		Long: `authstate signs a user in with an identity provider, reconciles the
identity with the user directory and keeps the session in a local store so
the next start can resume it without a round trip.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authstate/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags(), a.defaults)

	cmd.AddCommand(newStartCmd(a))
	cmd.AddCommand(newSignInCmd(a))
	cmd.AddCommand(newRegisterCmd(a))
	cmd.AddCommand(newSignOutCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))

	return cmd
}

func defaultStorePath() string {
	path, err := xdg.StorePath()
	if err != nil {
		return "authstate.db"
	}
	return path
}

// load reads the configuration and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	src := config.Source{Path: a.configFile, Required: a.configFile != ""}
	if src.Path == "" {
		if path, err := xdg.ConfigFile(); err == nil {
			src.Path = path
		}
	}

	cfg, err := config.Load(a.defaults, src, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return oops.Code("CONFIG_INVALID").With("log_level", cfg.LogLevel).Wrap(err)
	}

	a.cfg = cfg
	a.logger = logging.SetDefault("authstate", version, cfg.LogFormat, level, a.deps.LogOutput)
	return nil
}
