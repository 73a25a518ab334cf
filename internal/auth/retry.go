// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
)

// RetryOp names the operation a retry action re-runs.
type RetryOp string

// Retry operations.
const (
	// RetryResetToIdle abandons the current flow without any network I/O.
	RetryResetToIdle RetryOp = "reset_to_idle"
	// RetryStart re-runs the cold-start status check.
	RetryStart RetryOp = "start"
	// RetryLookup re-runs the directory lookup for ProviderID.
	RetryLookup RetryOp = "lookup"
)

// RetryAction is an inspectable retry command bound to the operation that failed.
type RetryAction struct {
	Op         RetryOp
	ProviderID string
	// Flow is the flow the action was issued for. The machine ignores the
	// action once a newer flow has started.
	Flow uint64
}

// ResetAction returns the action that abandons a sign-in flow.
func ResetAction() RetryAction { return RetryAction{Op: RetryResetToIdle} }

// StartAction returns the action that re-runs Start.
func StartAction() RetryAction { return RetryAction{Op: RetryStart} }

// LookupAction returns the action that re-runs the directory lookup for providerID.
func LookupAction(providerID string) RetryAction {
	return RetryAction{Op: RetryLookup, ProviderID: providerID}
}

// Retrier executes retry actions. *Machine implements it.
type Retrier interface {
	Retry(ctx context.Context, action RetryAction) error
}

// Bind returns the zero-argument closure a UI attaches to its retry control.
func (a RetryAction) Bind(ctx context.Context, r Retrier) func() error {
	return func() error {
		return r.Retry(ctx, a)
	}
}

// Notification is a user-facing failure banner with its retry action.
type Notification struct {
	Classification Classification
	Title          string
	Message        string
	Retry          RetryAction
}

// Incident describes a failure to present.
type Incident struct {
	Classification Classification
	Message        string
	// FailedStep is the operation that failed; it is the default retry
	// outside of a sign-in flow.
	FailedStep   RetryAction
	InSignInFlow bool
	// Flow is stamped onto the chosen retry action.
	Flow uint64
}

// Notification titles.
const (
	TitleNetwork = "You're offline"
	TitleService = "Something went wrong"
)

// RetryCoordinator turns classified failures into notifications.
type RetryCoordinator struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewRetryCoordinator creates a RetryCoordinator. A nil notifier drops notifications
// after logging them.
func NewRetryCoordinator(notifier Notifier, logger *slog.Logger) *RetryCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryCoordinator{notifier: notifier, logger: logger}
}

// Present builds and delivers the notification for inc. When retry is nil the
// default is chosen: a sign-in flow is reset to idle because the provider
// credential cannot be reused; otherwise the failed step is re-run.
func (c *RetryCoordinator) Present(ctx context.Context, inc Incident, retry *RetryAction) Notification {
	action := inc.FailedStep
	switch {
	case retry != nil:
		action = *retry
	case inc.InSignInFlow:
		action = ResetAction()
	case action.Op == "":
		action = ResetAction()
	}
	action.Flow = inc.Flow

	n := Notification{
		Classification: inc.Classification,
		Title:          TitleService,
		Message:        inc.Message,
		Retry:          action,
	}
	if inc.Classification == ClassNetwork {
		n.Title = TitleNetwork
		if n.Message == "" {
			n.Message = Message(CodeNetwork)
		}
	} else if n.Message == "" {
		n.Message = Message(CodeService)
	}

	FailuresPresented.WithLabelValues(string(n.Classification), string(action.Op)).Inc()
	c.logger.InfoContext(ctx, "presenting auth failure",
		"classification", n.Classification,
		"retry", action.Op,
		"in_sign_in_flow", inc.InSignInFlow,
	)
	if c.notifier != nil {
		c.notifier.Notify(ctx, n)
	}
	return n
}
