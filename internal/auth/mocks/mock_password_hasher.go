// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/aegis-auth/aegis/internal/auth"
)

// MockPasswordHasher is a mock implementation of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted when the test finishes.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)
