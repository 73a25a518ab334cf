// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

type signOutConfig struct {
	output         string
	clearLocalData bool
}

func newSignOutCmd(a *app) *cobra.Command {
	cfg := &signOutConfig{}

	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the saved session",
		Long: `Sign out: the saved identity and cached user are removed. With
--clear-local-data the configured purge prefixes are removed as well.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignOut(cmd, a, cfg)
		},
	}
	cmd.Flags().StringVarP(&cfg.output, "output", "o", outputText, "output format (text or yaml)")
	cmd.Flags().BoolVar(&cfg.clearLocalData, "clear-local-data", false, "also purge per-feature local caches")

	return cmd
}

func runSignOut(cmd *cobra.Command, a *app, cfg *signOutConfig) error {
	if err := validateOutput(cfg.output); err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := a.openSession(ctx, cmd.ErrOrStderr(), sessionOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.machine.SignOut(ctx, cfg.clearLocalData); err != nil {
		return err
	}
	return writeSnapshot(cmd.OutOrStdout(), cfg.output, s.machine.Snapshot())
}
