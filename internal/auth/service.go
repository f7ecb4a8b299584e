// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-auth/aegis/internal/observability"
	"github.com/aegis-auth/aegis/pkg/errutil"
)

// MaxPasswordLength bounds the plaintext accepted for hashing.
const MaxPasswordLength = 1024

var tracer = otel.Tracer("aegis/auth")

// RegisterRequest carries the fields of a registration.
type RegisterRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Country      string `json:"country"`
	AgreeToTerms bool   `json:"agreeToTerms"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// Service provides registration, login and token authentication.
type Service struct {
	store    CredentialStore
	hasher   PasswordHasher
	tokens   *TokenIssuer
	lifetime time.Duration
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash string
	dummyErr  error
}

// NewService creates a new Service using the default logger.
// A zero lifetime selects DefaultTokenLifetime.
func NewService(store CredentialStore, hasher PasswordHasher, tokens *TokenIssuer, lifetime time.Duration) (*Service, error) {
	return NewServiceWithLogger(store, hasher, tokens, lifetime, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(store CredentialStore, hasher PasswordHasher, tokens *TokenIssuer, lifetime time.Duration, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	if lifetime < 0 {
		return nil, oops.Code("AUTH_SERVICE_INVALID").With("lifetime", lifetime).Errorf("token lifetime cannot be negative")
	}
	if lifetime == 0 {
		lifetime = DefaultTokenLifetime
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		lifetime: lifetime,
		logger:   logger,
	}, nil
}

// Register creates a new account and returns its public view.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (view *AccountView, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { s.finish(span, "register", err) }()

	email := NormalizeEmail(req.Email)
	if err = ValidateEmail(email); err != nil {
		return nil, err
	}
	if err = validatePassword(req.Password); err != nil {
		return nil, err
	}
	if err = ValidateProfile(req.FirstName, req.LastName, req.Country); err != nil {
		return nil, err
	}

	_, err = s.store.FindByEmail(ctx, email)
	if err == nil {
		return nil, duplicateEmail()
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, s.internal("AUTH_REGISTER_FAILED", "find account by email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, invalidInput("password", "password is too long")
		}
		return nil, s.internal("AUTH_REGISTER_FAILED", "hash password", err)
	}

	draft, err := NewAccountDraft(req.FirstName, req.LastName, email, hash, req.Country, req.AgreeToTerms)
	if err != nil {
		return nil, err
	}

	account, err := s.store.Insert(ctx, draft)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicateEmail()
		}
		return nil, s.internal("AUTH_REGISTER_FAILED", "insert account", err)
	}

	s.logger.DebugContext(ctx, "account registered", "account", account)
	return account.View(), nil
}

// Login verifies credentials and issues a bearer token.
// An unknown email and a wrong password produce the same error, and both
// paths run one password verification.
func (s *Service) Login(ctx context.Context, req LoginRequest) (result *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { s.finish(span, "login", err) }()

	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, invalidInput("email", "email cannot be empty")
	}
	if req.Password == "" {
		return nil, invalidInput("password", "password cannot be empty")
	}
	if len(req.Password) > MaxPasswordLength {
		return nil, invalidCredentials()
	}

	account, lookupErr := s.store.FindByEmail(ctx, email)

	var targetHash string
	exists := lookupErr == nil
	if exists {
		targetHash = account.PasswordHash
	} else {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, s.internal("AUTH_LOGIN_FAILED", "find account by email", lookupErr)
		}
		targetHash, err = s.dummy()
		if err != nil {
			return nil, s.internal("AUTH_LOGIN_FAILED", "prepare dummy hash", err)
		}
	}

	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		// An unreadable stored hash must not answer differently from an
		// unknown email.
		if exists {
			errutil.LogErrorContext(ctx, s.logger, "stored password hash rejected",
				oops.Code("AUTH_LOGIN_FAILED").
					With("operation", "verify password").
					With("account_id", account.ID.String()).
					Wrap(verifyErr))
		}
		return nil, invalidCredentials()
	}
	if !exists || !valid {
		return nil, invalidCredentials()
	}

	token, err := s.tokens.Issue(account.Email, s.lifetime)
	if err != nil {
		return nil, s.internal("AUTH_LOGIN_FAILED", "issue token", err)
	}

	s.logger.DebugContext(ctx, "login succeeded", "account", account)
	return &LoginResult{AccessToken: token.Token, TokenType: TokenType}, nil
}

// Authenticate resolves a bearer token to the account it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (view *AccountView, err error) {
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer func() { s.finish(span, "authenticate", err) }()

	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, tokenInvalid("subject does not resolve to an account")
		}
		return nil, s.internal("AUTH_AUTHENTICATE_FAILED", "find account by email", err)
	}
	return account.View(), nil
}

// dummy returns a hash made by the configured hasher, so verifying against
// it costs the same as verifying a real account.
func (s *Service) dummy() (string, error) {
	s.dummyOnce.Do(func() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			s.dummyErr = oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
			return
		}
		s.dummyHash, s.dummyErr = s.hasher.Hash(hex.EncodeToString(buf))
	})
	return s.dummyHash, s.dummyErr
}

func (s *Service) internal(code, operation string, err error) error {
	wrapped := oops.Code(code).With("operation", operation).Wrap(err)
	errutil.LogError(s.logger, "auth operation failed", wrapped)
	return wrapped
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	outcome := Outcome(err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil && outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	observability.RecordAuthOutcome(operation, outcome)
}

// Outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeDuplicateEmail     = "duplicate_email"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeTokenInvalid       = "token_invalid"
	OutcomeTokenExpired       = "token_expired"
	OutcomeError              = "error"
)

// Outcome classifies an error returned by Service into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrDuplicateEmail):
		return OutcomeDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return OutcomeTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return OutcomeTokenInvalid
	default:
		return OutcomeError
	}
}

func validatePassword(password string) error {
	if password == "" {
		return invalidInput("password", "password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return invalidInput("password", "password is too long")
	}
	return nil
}

func duplicateEmail() error {
	return oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}
