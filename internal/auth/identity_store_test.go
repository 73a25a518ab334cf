// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/kvstore"
	"github.com/holomush/authstate/pkg/errutil"
)

func TestIdentityStore_Remember(t *testing.T) {
	ctx := context.Background()
	ids := auth.NewIdentityStore(kvstore.NewMemory(), nil)

	_, ok := ids.Identity(ctx)
	assert.False(t, ok)

	require.NoError(t, ids.Remember(ctx, "abc", "a@example.com", "Ana"))
	id, ok := ids.Identity(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "a@example.com", ids.SavedEmail(ctx))
	assert.Equal(t, "Ana", ids.SavedName(ctx))

	// Later sign-ins without email or name keep the first-consent values.
	require.NoError(t, ids.Remember(ctx, "abc", "", ""))
	assert.Equal(t, "a@example.com", ids.SavedEmail(ctx))
	assert.Equal(t, "Ana", ids.SavedName(ctx))
}

func TestIdentityStore_RememberRequiresProviderID(t *testing.T) {
	ids := auth.NewIdentityStore(kvstore.NewMemory(), nil)

	err := ids.Remember(context.Background(), "", "a@example.com", "Ana")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_IDENTITY_INVALID")
}

func TestIdentityStore_AuthenticatedFlag(t *testing.T) {
	ctx := context.Background()
	ids := auth.NewIdentityStore(kvstore.NewMemory(), nil)

	assert.False(t, ids.IsAuthenticated(ctx))
	require.NoError(t, ids.SetAuthenticated(ctx, true))
	assert.True(t, ids.IsAuthenticated(ctx))
	require.NoError(t, ids.SetAuthenticated(ctx, false))
	assert.False(t, ids.IsAuthenticated(ctx))
}

func TestIdentityStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	ids := auth.NewIdentityStore(store, nil)
	require.NoError(t, ids.Remember(ctx, "abc", "a@example.com", "Ana"))
	require.NoError(t, ids.SetAuthenticated(ctx, true))

	require.NoError(t, ids.Clear(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIdentityStore_FailuresSurface(t *testing.T) {
	ctx := context.Background()

	t.Run("set failure", func(t *testing.T) {
		ids := auth.NewIdentityStore(&faultyStore{Memory: kvstore.NewMemory(), failSet: true}, nil)
		err := ids.Remember(ctx, "abc", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_IDENTITY_SAVE_FAILED")
		errutil.AssertErrorContext(t, err, "key", auth.KeyIdentity)
	})

	t.Run("clear failure", func(t *testing.T) {
		ids := auth.NewIdentityStore(&faultyStore{Memory: kvstore.NewMemory(), failRemove: true}, nil)
		err := ids.Clear(ctx)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_IDENTITY_CLEAR_FAILED")
		assert.ErrorIs(t, err, errDisk)
	})

	t.Run("read failure reads as empty", func(t *testing.T) {
		ids := auth.NewIdentityStore(&faultyStore{Memory: kvstore.NewMemory(), failGet: true}, nil)
		_, ok := ids.Identity(ctx)
		assert.False(t, ok)
		assert.Empty(t, ids.SavedEmail(ctx))
	})
}
