// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authstate/internal/auth"
)

// MockStatusChecker is a mock auth.StatusChecker.
type MockStatusChecker struct {
	mock.Mock
}

// NewMockStatusChecker creates a MockStatusChecker whose expectations are asserted on cleanup.
func NewMockStatusChecker(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockStatusChecker {
	m := &MockStatusChecker{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// CredentialState provides a mock function.
func (m *MockStatusChecker) CredentialState(ctx context.Context, providerID string) (auth.CredentialStatus, error) {
	ret := m.Called(ctx, providerID)
	if fn, ok := ret.Get(0).(func(context.Context, string) (auth.CredentialStatus, error)); ok {
		return fn(ctx, providerID)
	}
	return ret.Get(0).(auth.CredentialStatus), ret.Error(1)
}

var _ auth.StatusChecker = (*MockStatusChecker)(nil)
