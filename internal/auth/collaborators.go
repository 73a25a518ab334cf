// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NameComponents is the structured name a provider supplies on first consent.
type NameComponents struct {
	GivenName  string
	MiddleName string
	FamilyName string
	Nickname   string
}

// Formatted joins the non-empty components in display order. The nickname is
// only used when no other component is present.
func (n NameComponents) Formatted() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.GivenName, n.MiddleName, n.FamilyName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(n.Nickname)
	}
	return strings.Join(parts, " ")
}

// Credential is the result of a completed provider sign-in.
// Email and FullName are only present the first time the user consents.
type Credential struct {
	ProviderID string
	Email      string
	FullName   *NameComponents
}

// DisplayName returns the formatted full name, or "" when the provider did not supply one.
func (c Credential) DisplayName() string {
	if c.FullName == nil {
		return ""
	}
	return c.FullName.Formatted()
}

// CredentialStatus is the provider's view of a previously issued credential.
type CredentialStatus string

// Credential status outcomes.
const (
	StatusAuthorized  CredentialStatus = "authorized"
	StatusRevoked     CredentialStatus = "revoked"
	StatusNotFound    CredentialStatus = "not_found"
	StatusTransferred CredentialStatus = "transferred"
)

// StatusChecker asks the provider for the state of a credential.
type StatusChecker interface {
	CredentialState(ctx context.Context, providerID string) (CredentialStatus, error)
}

// Directory is the remote store mapping provider identities to users.
type Directory interface {
	// Lookup returns the user for a provider id, or ErrNotFound.
	Lookup(ctx context.Context, providerID string) (*User, error)

	// Create stores a new user and returns the assigned id.
	Create(ctx context.Context, user *User) (ulid.ULID, error)
}

// Reachability reports current connectivity.
type Reachability interface {
	IsReachable() bool
}

// KeyValueStore is the local persisted store. Get returns ErrNotFound for
// missing keys; Remove of a missing key is not an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Purger clears an adjacent per-feature cache on sign-out.
type Purger interface {
	Purge(ctx context.Context) error
}

// Notifier receives user-facing failure notifications.
// Notify is called from the machine's event loop and must not block on it.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
