// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"time"

	"github.com/spf13/cobra"
)

const defaultSettleTimeout = 30 * time.Second

// flowFlags are shared by the commands that run a flow and print the outcome.
type flowFlags struct {
	output  string
	timeout time.Duration
	retries int
}

func (f *flowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", outputText, "output format (text or yaml)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", defaultSettleTimeout, "how long to wait for the flow to finish")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "times to run the offered retry action after a failure")
}

func newStartCmd(a *app) *cobra.Command {
	flags := &flowFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Resume the saved session",
		Long: `Resume the saved session: a cached user signs in immediately, otherwise the
provider confirms the credential and the user is looked up in the directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, a, flags)
		},
	}
	flags.register(cmd)

	return cmd
}

func runStart(cmd *cobra.Command, a *app, flags *flowFlags) error {
	if err := validateOutput(flags.output); err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := a.openSession(ctx, cmd.ErrOrStderr(), sessionOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.machine.Start(ctx); err != nil {
		return err
	}
	snap, err := s.settleWithRetries(ctx, flags.timeout, flags.retries)
	if err != nil {
		return err
	}
	return writeSnapshot(cmd.OutOrStdout(), flags.output, snap)
}
