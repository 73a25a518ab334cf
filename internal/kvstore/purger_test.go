// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package kvstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/kvstore"
	"github.com/holomush/authstate/pkg/errutil"
)

type failingRemover struct{}

func (failingRemover) RemovePrefix(context.Context, string) (int, error) {
	return 0, errors.New("disk full")
}

func TestNewPrefixPurger_Validation(t *testing.T) {
	tests := []struct {
		name   string
		store  kvstore.PrefixRemover
		prefix string
	}{
		{"nil store", nil, "contacts."},
		{"empty prefix", kvstore.NewMemory(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := kvstore.NewPrefixPurger(tt.store, tt.prefix, nil)
			require.Error(t, err)
			assert.Nil(t, p)
			errutil.AssertErrorCode(t, err, "KVSTORE_PURGER_INVALID")
		})
	}
}

func TestPrefixPurger_Purge(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemory()
	require.NoError(t, m.Set(ctx, "notes.1", []byte("n")))
	require.NoError(t, m.Set(ctx, "auth.identity", []byte("abc")))

	p, err := kvstore.NewPrefixPurger(m, "notes.", nil)
	require.NoError(t, err)
	assert.Equal(t, "notes.", p.Prefix())

	var _ auth.Purger = p
	require.NoError(t, p.Purge(ctx))

	_, err = m.Get(ctx, "notes.1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = m.Get(ctx, "auth.identity")
	assert.NoError(t, err)
}

func TestPrefixPurger_PurgeFailure(t *testing.T) {
	p, err := kvstore.NewPrefixPurger(failingRemover{}, "notes.", nil)
	require.NoError(t, err)

	err = p.Purge(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "KVSTORE_PURGE_FAILED")
	errutil.AssertErrorContext(t, err, "prefix", "notes.")
}
