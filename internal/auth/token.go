// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Token configuration.
const (
	// MinSecretKeyLength is the shortest accepted HMAC key, matching the
	// HS256 output size.
	MinSecretKeyLength = 32

	// DefaultTokenLifetime applies when no lifetime is configured.
	DefaultTokenLifetime = 60 * time.Minute

	// DefaultIssuer is written to the iss claim.
	DefaultIssuer = "aegis"

	// TokenType is returned alongside every access token.
	TokenType = "bearer"
)

// SessionToken is a signed, time-limited credential. It is never persisted.
type SessionToken struct {
	Token     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints and verifies HS256 session tokens. It holds only
// immutable state and is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

// WithIssuer sets the iss claim written on issued tokens.
func WithIssuer(issuer string) TokenIssuerOption {
	return func(i *TokenIssuer) { i.issuer = issuer }
}

// NewTokenIssuer creates a TokenIssuer. A missing or short secret is a
// configuration error; there is no fallback key.
func NewTokenIssuer(secret []byte, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeMissingSecret).Wrapf(ErrConfiguration, "token signing secret is not configured")
	}
	if len(secret) < MinSecretKeyLength {
		return nil, oops.Code(CodeWeakSecret).
			With("min_length", MinSecretKeyLength).
			Wrapf(ErrConfiguration, "token signing secret must be at least %d bytes", MinSecretKeyLength)
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	i := &TokenIssuer{
		secret: key,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	// Claims are checked by Verify against i.now once the signature holds.
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return i, nil
}

// Issue mints a token for subject that expires after lifetime.
func (i *TokenIssuer) Issue(subject string, lifetime time.Duration) (*SessionToken, error) {
	if subject == "" {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("token subject cannot be empty")
	}
	if lifetime <= 0 {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("lifetime", lifetime).Errorf("token lifetime must be positive")
	}

	// NumericDate has second precision; truncating here keeps exp exactly
	// iat+lifetime after encoding.
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(lifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("operation", "sign token").Wrap(err)
	}

	return &SessionToken{
		Token:     signed,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the token signature and then its expiry, returning the
// subject claim. Structural and signature failures are reported as
// ErrTokenInvalid before any claim is looked at, so a forged token never
// yields ErrTokenExpired.
func (i *TokenIssuer) Verify(token string) (string, error) {
	if token == "" {
		return "", tokenInvalid("empty token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", tokenInvalid("signature or structure rejected")
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", tokenInvalid("required claims missing")
	}

	if !i.now().Before(claims.ExpiresAt.Time) {
		return "", oops.Code(CodeTokenExpired).
			With("expired_at", claims.ExpiresAt.Time).
			Wrap(ErrTokenExpired)
	}

	return claims.Subject, nil
}

func tokenInvalid(reason string) error {
	return oops.Code(CodeTokenInvalid).With("reason", reason).Wrap(ErrTokenInvalid)
}
