// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package memory provides an in-process CredentialStore for tests and
// single-node development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/aegis-auth/aegis/internal/auth"
)

// Store keeps accounts in a map keyed by canonical email.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]auth.Account
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]auth.Account),
		now:      time.Now,
	}
}

// FindByEmail implements auth.CredentialStore.
func (s *Store) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	// Copy so callers cannot mutate stored state.
	return &account, nil
}

// Insert implements auth.CredentialStore.
func (s *Store) Insert(_ context.Context, draft auth.AccountDraft) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[draft.Email]; taken {
		return nil, oops.Code("ACCOUNT_DUPLICATE").With("email", draft.Email).Wrap(auth.ErrDuplicateKey)
	}

	account := auth.NewAccount(draft, s.now().UTC())
	s.accounts[draft.Email] = *account
	return account, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Ping implements the readiness probe; an in-process store is always ready.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ auth.CredentialStore = (*Store)(nil)
