// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/samber/oops"

	"github.com/holomush/authstate/pkg/errutil"
)

// IdentityStore persists the auxiliary sign-in fields that live outside the
// cached user: the last provider identity, email, display name and the
// is-authenticated flag.
type IdentityStore struct {
	store  KeyValueStore
	logger *slog.Logger
}

// NewIdentityStore creates an IdentityStore over store.
func NewIdentityStore(store KeyValueStore, logger *slog.Logger) *IdentityStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityStore{store: store, logger: logger}
}

// Identity returns the persisted provider id.
func (s *IdentityStore) Identity(ctx context.Context) (string, bool) {
	v := s.get(ctx, KeyIdentity)
	return v, v != ""
}

// SavedEmail returns the last email the provider supplied, or "".
func (s *IdentityStore) SavedEmail(ctx context.Context) string {
	return s.get(ctx, KeySavedEmail)
}

// SavedName returns the last display name the provider supplied, or "".
func (s *IdentityStore) SavedName(ctx context.Context) string {
	return s.get(ctx, KeySavedName)
}

// IsAuthenticated returns the persisted is-authenticated flag.
func (s *IdentityStore) IsAuthenticated(ctx context.Context) bool {
	v, err := strconv.ParseBool(s.get(ctx, KeyIsAuthenticated))
	return err == nil && v
}

// Remember persists the provider id and, when non-empty, the email and name.
// Empty email or name keep the previously saved value.
func (s *IdentityStore) Remember(ctx context.Context, providerID, email, name string) error {
	if providerID == "" {
		return oops.Code("AUTH_IDENTITY_INVALID").Errorf("provider id cannot be empty")
	}
	if err := s.store.Set(ctx, KeyIdentity, []byte(providerID)); err != nil {
		return oops.Code("AUTH_IDENTITY_SAVE_FAILED").With("key", KeyIdentity).Wrap(err)
	}
	if email != "" {
		if err := s.store.Set(ctx, KeySavedEmail, []byte(email)); err != nil {
			return oops.Code("AUTH_IDENTITY_SAVE_FAILED").With("key", KeySavedEmail).Wrap(err)
		}
	}
	if name != "" {
		if err := s.store.Set(ctx, KeySavedName, []byte(name)); err != nil {
			return oops.Code("AUTH_IDENTITY_SAVE_FAILED").With("key", KeySavedName).Wrap(err)
		}
	}
	return nil
}

// SetAuthenticated persists the is-authenticated flag.
func (s *IdentityStore) SetAuthenticated(ctx context.Context, authenticated bool) error {
	if err := s.store.Set(ctx, KeyIsAuthenticated, []byte(strconv.FormatBool(authenticated))); err != nil {
		return oops.Code("AUTH_IDENTITY_SAVE_FAILED").With("key", KeyIsAuthenticated).Wrap(err)
	}
	return nil
}

// Clear removes every auxiliary field. All keys are attempted; the errors are joined.
func (s *IdentityStore) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyIdentity, KeyIsAuthenticated, KeySavedEmail, KeySavedName} {
		if err := s.store.Remove(ctx, key); err != nil {
			errs = append(errs, oops.With("key", key).Wrap(err))
		}
	}
	if len(errs) > 0 {
		return oops.Code("AUTH_IDENTITY_CLEAR_FAILED").Wrap(errors.Join(errs...))
	}
	return nil
}

func (s *IdentityStore) get(ctx context.Context, key string) string {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, s.logger, "identity field not readable",
				oops.Code("AUTH_IDENTITY_READ_FAILED").With("key", key).Wrap(err))
		}
		return ""
	}
	return string(data)
}
