// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authstate/internal/auth"
)

// MockPurger is a mock auth.Purger.
type MockPurger struct {
	mock.Mock
}

// NewMockPurger creates a MockPurger whose expectations are asserted on cleanup.
func NewMockPurger(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPurger {
	m := &MockPurger{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Purge provides a mock function.
func (m *MockPurger) Purge(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ auth.Purger = (*MockPurger)(nil)
