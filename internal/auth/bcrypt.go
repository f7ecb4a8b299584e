// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-auth/aegis/internal/observability"
)

// bcrypt only looks at the first 72 bytes; longer input is rejected rather
// than silently truncated.
const bcryptMaxPasswordBytes = 72

// ErrPasswordTooLong is wrapped by BcryptHasher for passwords over 72 bytes.
var ErrPasswordTooLong = errors.New("password too long for bcrypt")

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("CONFIG_INVALID").
			With("cost", cost).
			Wrapf(ErrConfiguration, "bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > bcryptMaxPasswordBytes {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").With("max_bytes", bcryptMaxPasswordBytes).Wrap(ErrPasswordTooLong)
	}
	defer observability.ObservePasswordHash(AlgorithmBcrypt, "hash", time.Now())

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the bcrypt hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// Nothing over the limit was ever hashed, so it cannot match.
	if len(password) > bcryptMaxPasswordBytes {
		return false, nil
	}
	defer observability.ObservePasswordHash(AlgorithmBcrypt, "verify", time.Now())

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

// Compile-time interface check.
var _ PasswordHasher = (*BcryptHasher)(nil)
