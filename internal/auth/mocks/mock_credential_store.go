// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aegis-auth/aegis/internal/auth"
)

// MockCredentialStore is a mock implementation of auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a MockCredentialStore whose expectations are
// asserted when the test finishes.
func NewMockCredentialStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindByEmail provides a mock function.
func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	ret := m.Called(ctx, email)

	if fn, ok := ret.Get(0).(func(context.Context, string) (*auth.Account, error)); ok {
		return fn(ctx, email)
	}

	var account *auth.Account
	if v := ret.Get(0); v != nil {
		account = v.(*auth.Account)
	}
	return account, ret.Error(1)
}

// Insert provides a mock function.
func (m *MockCredentialStore) Insert(ctx context.Context, draft auth.AccountDraft) (*auth.Account, error) {
	ret := m.Called(ctx, draft)

	if fn, ok := ret.Get(0).(func(context.Context, auth.AccountDraft) (*auth.Account, error)); ok {
		return fn(ctx, draft)
	}

	var account *auth.Account
	if v := ret.Get(0); v != nil {
		account = v.(*auth.Account)
	}
	return account, ret.Error(1)
}

var _ auth.CredentialStore = (*MockCredentialStore)(nil)
