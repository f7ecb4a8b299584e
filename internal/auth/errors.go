// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import "errors"

// Store sentinels. CredentialStore implementations wrap these so callers can
// match with errors.Is regardless of the backing engine.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by Insert when the canonical email is taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Outcome sentinels. Every error returned by Service and TokenIssuer for a
// rejected request wraps exactly one of these.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	// ErrConfiguration marks a startup-fatal misconfiguration.
	ErrConfiguration = errors.New("configuration error")
)

// Error codes attached with oops.Code.
const (
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeMissingSecret      = "CONFIG_MISSING_SECRET"
	CodeWeakSecret         = "CONFIG_WEAK_SECRET"
)
