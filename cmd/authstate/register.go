// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/auth"
)

type registerConfig struct {
	flowFlags
	name        string
	nationality string
	areas       []string
	interests   []string
	photoURL    string
}

func newRegisterCmd(a *app) *cobra.Command {
	cfg := &registerConfig{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create the directory user for a signed-in identity",
		Long: `Create the directory user for the identity that signed in but has no user
yet. The name defaults to the one the provider supplied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, a, cfg)
		},
	}
	cfg.register(cmd)
	cmd.Flags().StringVar(&cfg.name, "name", "", "display name")
	cmd.Flags().StringVar(&cfg.nationality, "nationality", "", "nationality")
	cmd.Flags().StringSliceVar(&cfg.areas, "area", nil, "area of activity (repeatable)")
	cmd.Flags().StringSliceVar(&cfg.interests, "interest", nil, "interest (repeatable)")
	cmd.Flags().StringVar(&cfg.photoURL, "photo-url", "", "profile photo URL")

	return cmd
}

func (c *registerConfig) profile() auth.Profile {
	p := auth.Profile{
		Name:      c.name,
		Areas:     c.areas,
		Interests: c.interests,
	}
	if c.nationality != "" {
		p.Nationality = &c.nationality
	}
	if c.photoURL != "" {
		p.PhotoURL = &c.photoURL
	}
	return p
}

func runRegister(cmd *cobra.Command, a *app, cfg *registerConfig) error {
	if err := validateOutput(cfg.output); err != nil {
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
	if _, err := s.settleWithRetries(ctx, cfg.timeout, cfg.retries); err != nil {
		return err
	}

	registration, err := auth.NewRegistrationService(s.machine, s.directory)
	if err != nil {
		return err
	}
	if _, err := registration.Register(ctx, cfg.profile()); err != nil {
		return err
	}
	return writeSnapshot(cmd.OutOrStdout(), cfg.output, s.machine.Snapshot())
}
