// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify doubles for the auth collaborator interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/authstate/internal/auth"
)

// MockDirectory is a mock auth.Directory.
type MockDirectory struct {
	mock.Mock
}

// NewMockDirectory creates a MockDirectory whose expectations are asserted on cleanup.
func NewMockDirectory(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockDirectory {
	m := &MockDirectory{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Lookup provides a mock function.
func (m *MockDirectory) Lookup(ctx context.Context, providerID string) (*auth.User, error) {
	ret := m.Called(ctx, providerID)
	if fn, ok := ret.Get(0).(func(context.Context, string) (*auth.User, error)); ok {
		return fn(ctx, providerID)
	}
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// Create provides a mock function.
func (m *MockDirectory) Create(ctx context.Context, user *auth.User) (ulid.ULID, error) {
	ret := m.Called(ctx, user)
	return ret.Get(0).(ulid.ULID), ret.Error(1)
}

var _ auth.Directory = (*MockDirectory)(nil)
