// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/auth"
)

// localStatus is what the local store says about the session, without
// contacting the provider or the directory.
type localStatus struct {
	StorePath     string    `yaml:"store_path"`
	Identity      string    `yaml:"identity,omitempty"`
	Email         string    `yaml:"email,omitempty"`
	Name          string    `yaml:"name,omitempty"`
	Authenticated bool      `yaml:"authenticated"`
	CachedUser    *userView `yaml:"cached_user,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved session without contacting any service",
		Long:  `Show the identity, sign-in flag and cached user held in the local store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, a, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text or yaml)")

	return cmd
}

func runStatus(cmd *cobra.Command, a *app, output string) error {
	if err := validateOutput(output); err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := a.deps.OpenStore(ctx, a.cfg.StorePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ids := auth.NewIdentityStore(store, a.logger)
	st := localStatus{StorePath: a.cfg.StorePath}
	st.Identity, _ = ids.Identity(ctx)
	st.Email = ids.SavedEmail(ctx)
	st.Name = ids.SavedName(ctx)
	st.Authenticated = ids.IsAuthenticated(ctx)
	if st.Identity != "" {
		st.CachedUser = newUserView(auth.NewUserCache(store, a.logger).Load(ctx))
	}

	if output == outputYAML {
		return writeYAML(cmd.OutOrStdout(), st)
	}
	return writeLocalStatus(cmd.OutOrStdout(), st)
}

func writeLocalStatus(w io.Writer, st localStatus) error {
	var b strings.Builder
	writeField(&b, "store", st.StorePath)
	if st.Identity == "" {
		fmt.Fprintf(&b, "%-15s%s\n", "identity:", color.New(color.Faint).Sprint("none (signed out)"))
	}
	writeField(&b, "identity", st.Identity)
	writeField(&b, "email", st.Email)
	writeField(&b, "name", st.Name)
	fmt.Fprintf(&b, "authenticated: %t\n", st.Authenticated)
	if st.CachedUser != nil {
		b.WriteString("cached ")
		writeUser(&b, st.CachedUser)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
