// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/provider"
)

// providerErrors maps --provider-error values to provider failures.
var providerErrors = map[string]error{
	"cancelled":        auth.ErrCancelled,
	"invalid_response": auth.ErrInvalidResponse,
	"unhandled":        auth.ErrProviderUnhandled,
	"unknown":          auth.ErrProviderUnknown,
}

type signInConfig struct {
	flowFlags
	idToken       string
	providerError string
}

func newSignInCmd(a *app) *cobra.Command {
	cfg := &signInConfig{}

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Complete a provider sign-in",
		Long: `Complete a provider sign-in with the ID token the provider returned.
Use --id-token - to read the token from stdin. --provider-error reports a
sign-in that failed in the provider UI instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignIn(cmd, a, cfg)
		},
	}
	cfg.register(cmd)
	cmd.Flags().StringVar(&cfg.idToken, "id-token", "", "provider ID token (- reads stdin)")
	cmd.Flags().StringVar(&cfg.providerError, "provider-error", "", "provider failure: cancelled, invalid_response, unhandled or unknown")
	cmd.MarkFlagsMutuallyExclusive("id-token", "provider-error")
	cmd.MarkFlagsOneRequired("id-token", "provider-error")

	return cmd
}

func runSignIn(cmd *cobra.Command, a *app, cfg *signInConfig) error {
	if err := validateOutput(cfg.output); err != nil {
		return err
	}
	ctx := cmd.Context()

	var providerErr error
	if cfg.providerError != "" {
		var ok bool
		if providerErr, ok = providerErrors[cfg.providerError]; !ok {
			return oops.Code("CLI_ARGUMENT_INVALID").
				With("provider_error", cfg.providerError).
				Errorf("unknown provider error %q", cfg.providerError)
		}
	}

	s, err := a.openSession(ctx, cmd.ErrOrStderr(), sessionOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	// The machine resumes first so a sign-in made while signed in keeps the user.
	if err := s.machine.Start(ctx); err != nil {
		return err
	}
	if _, err := s.settle(ctx, cfg.timeout); err != nil {
		return err
	}

	if providerErr != nil {
		if err := s.machine.HandleCredentialError(ctx, providerErr); err != nil {
			return err
		}
	} else {
		token, err := readToken(cmd.InOrStdin(), cfg.idToken)
		if err != nil {
			return err
		}
		cred, err := a.tokenParser().Parse(token)
		if err != nil {
			// A malformed token is reported the way the provider UI would report it.
			if herr := s.machine.HandleCredentialError(ctx, err); herr != nil {
				return herr
			}
		} else if err := s.machine.HandleCredential(ctx, cred); err != nil {
			return err
		}
	}

	snap, err := s.settleWithRetries(ctx, cfg.timeout, cfg.retries)
	if err != nil {
		return err
	}
	return writeSnapshot(cmd.OutOrStdout(), cfg.output, snap)
}

func (a *app) tokenParser() *provider.TokenParser {
	if secret := a.cfg.Provider.TokenSecret; secret != "" {
		return provider.NewTokenParser(provider.WithHMACSecret([]byte(secret)))
	}
	return provider.NewTokenParser()
}

func readToken(stdin io.Reader, flag string) (string, error) {
	if flag != "-" {
		return flag, nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", oops.Code("CLI_INPUT_FAILED").Wrap(err)
	}
	return strings.TrimSpace(string(b)), nil
}
