// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package auth provides credential issuance and validation for Aegis.
//
// # Domain Types
//
// Account is the only persisted entity. New accounts are described by an
// AccountDraft built with NewAccountDraft, which normalizes and validates
// input; the CredentialStore assigns the ID and creation time on Insert.
// Accounts are never updated or deleted by this package.
//
// SessionToken is ephemeral: a signed HS256 JWT minted by TokenIssuer and
// never persisted.
//
// # Services
//
// Service coordinates the PasswordHasher, TokenIssuer and CredentialStore:
//   - Register - create an account, rejecting case-variant duplicates
//   - Login - verify credentials and mint a bearer token
//   - Authenticate - resolve a bearer token to the account it names
//
// Rejections wrap one of the outcome sentinels (ErrInvalidInput,
// ErrDuplicateEmail, ErrInvalidCredentials, ErrTokenInvalid, ErrTokenExpired)
// and carry the matching oops code.
package auth
