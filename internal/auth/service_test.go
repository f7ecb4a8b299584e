// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/auth/memory"
	"github.com/aegis-auth/aegis/internal/auth/mocks"
	"github.com/aegis-auth/aegis/pkg/errutil"
)

func newTestService(t *testing.T, store auth.CredentialStore, hasher auth.PasswordHasher, clock *fakeClock) *auth.Service {
	t.Helper()
	svc, err := auth.NewServiceWithLogger(store, hasher, newIssuer(t, clock), time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return svc
}

func adaRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		FirstName:    "A",
		LastName:     "B",
		Email:        "a@x.com",
		Password:     "pw123",
		Country:      "BR",
		AgreeToTerms: true,
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	issuer := newIssuer(t, &fakeClock{now: time.Now()})

	tests := []struct {
		name        string
		store       auth.CredentialStore
		hasher      auth.PasswordHasher
		tokens      *auth.TokenIssuer
		expectError string
	}{
		{"nil store", nil, mocks.NewMockPasswordHasher(t), issuer, "credential store is required"},
		{"nil hasher", mocks.NewMockCredentialStore(t), nil, issuer, "password hasher is required"},
		{"nil token issuer", mocks.NewMockCredentialStore(t), mocks.NewMockPasswordHasher(t), nil, "token issuer is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.store, tt.hasher, tt.tokens, time.Hour)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_Validation(t *testing.T) {
	store := mocks.NewMockCredentialStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	issuer := newIssuer(t, &fakeClock{now: time.Now()})

	_, err := auth.NewServiceWithLogger(store, hasher, issuer, time.Hour, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger")

	_, err = auth.NewServiceWithLogger(store, hasher, issuer, -time.Minute, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestService_RegisterLoginScenario(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, memory.New(), fastArgon2(t), clock)

	view, err := svc.Register(ctx, adaRequest())
	require.NoError(t, err)
	assert.Equal(t, &auth.AccountView{FirstName: "A", LastName: "B", Email: "a@x.com", Country: "BR"}, view)

	again := adaRequest()
	again.Email = "A@X.com"
	_, err = svc.Register(ctx, again)
	errutil.AssertOutcome(t, err, auth.ErrDuplicateEmail, auth.CodeDuplicateEmail)

	result, err := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw123"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Len(t, strings.Split(result.AccessToken, "."), 3)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "wrong"})
	errutil.AssertOutcome(t, err, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
}

func TestService_RegisterNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store, fastArgon2(t), &fakeClock{now: time.Now()})

	req := adaRequest()
	req.Email = "  Mixed.Case@Example.ORG "
	view, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.org", view.Email)

	stored, err := store.FindByEmail(ctx, "mixed.case@example.org")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "MIXED.case@example.org", Password: "pw123"})
	require.NoError(t, err)
}

func TestService_RegisterInvalidInput(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*auth.RegisterRequest)
		field  string
	}{
		{"empty email", func(r *auth.RegisterRequest) { r.Email = "" }, "email"},
		{"malformed email", func(r *auth.RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"empty password", func(r *auth.RegisterRequest) { r.Password = "" }, "password"},
		{"oversized password", func(r *auth.RegisterRequest) { r.Password = strings.Repeat("p", auth.MaxPasswordLength+1) }, "password"},
		{"missing first name", func(r *auth.RegisterRequest) { r.FirstName = "" }, "firstName"},
		{"missing country", func(r *auth.RegisterRequest) { r.Country = " " }, "country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Rejected before the store is consulted, so the mocks carry no expectations.
			store := mocks.NewMockCredentialStore(t)
			hasher := mocks.NewMockPasswordHasher(t)
			svc := newTestService(t, store, hasher, &fakeClock{now: time.Now()})

			req := adaRequest()
			tt.mutate(&req)
			view, err := svc.Register(ctx, req)
			assert.Nil(t, view)
			errutil.AssertOutcome(t, err, auth.ErrInvalidInput, auth.CodeInvalidInput)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestService_RegisterAgreeToTermsIsRecordedNotRequired(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store, fastArgon2(t), &fakeClock{now: time.Now()})

	req := adaRequest()
	req.AgreeToTerms = false
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	stored, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, stored.AgreedToTerms)
}

func TestService_RegisterRaceLostSurfacesDuplicate(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockCredentialStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newTestService(t, store, hasher, &fakeClock{now: time.Now()})

	store.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, auth.ErrNotFound)
	hasher.On("Hash", "pw123").Return("$argon2id$stub", nil)
	store.On("Insert", mock.Anything, mock.MatchedBy(func(d auth.AccountDraft) bool {
		return d.Email == "a@x.com" && d.PasswordHash == "$argon2id$stub"
	})).Return(nil, auth.ErrDuplicateKey)

	_, err := svc.Register(ctx, adaRequest())
	errutil.AssertOutcome(t, err, auth.ErrDuplicateEmail, auth.CodeDuplicateEmail)
}

func TestService_RegisterStoreFailures(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection reset")

	t.Run("lookup failure is internal", func(t *testing.T) {
		store := mocks.NewMockCredentialStore(t)
		var buf bytes.Buffer
		svc, err := auth.NewServiceWithLogger(store, mocks.NewMockPasswordHasher(t), newIssuer(t, &fakeClock{now: time.Now()}),
			time.Hour, slog.New(slog.NewJSONHandler(&buf, nil)))
		require.NoError(t, err)

		store.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, storeErr)

		_, err = svc.Register(ctx, adaRequest())
		require.Error(t, err)
		assert.True(t, errors.Is(err, storeErr))
		assert.Equal(t, auth.OutcomeError, auth.Outcome(err))
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		assert.Contains(t, buf.String(), "auth operation failed")
		assert.NotContains(t, buf.String(), "pw123")
	})

	t.Run("insert failure is internal", func(t *testing.T) {
		store := mocks.NewMockCredentialStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc := newTestService(t, store, hasher, &fakeClock{now: time.Now()})

		store.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "pw123").Return("$argon2id$stub", nil)
		store.On("Insert", mock.Anything, mock.Anything).Return(nil, storeErr)

		_, err := svc.Register(ctx, adaRequest())
		assert.True(t, errors.Is(err, storeErr))
		assert.False(t, errors.Is(err, auth.ErrDuplicateEmail))
	})

	t.Run("bcrypt length limit is invalid input", func(t *testing.T) {
		store := mocks.NewMockCredentialStore(t)
		bcryptHasher, err := auth.NewBcryptHasher(4)
		require.NoError(t, err)
		svc := newTestService(t, store, bcryptHasher, &fakeClock{now: time.Now()})

		store.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, auth.ErrNotFound)

		req := adaRequest()
		req.Password = strings.Repeat("p", 100)
		_, err = svc.Register(ctx, req)
		errutil.AssertOutcome(t, err, auth.ErrInvalidInput, auth.CodeInvalidInput)
	})
}

func TestService_LoginUnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New(), fastArgon2(t), &fakeClock{now: time.Now()})

	_, err := svc.Register(ctx, adaRequest())
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, auth.LoginRequest{Email: "ghost@x.com", Password: "pw123"})
	_, wrongErr := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "nope"})

	errutil.AssertOutcome(t, unknownErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	errutil.AssertOutcome(t, wrongErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestService_LoginUnknownEmailStillVerifies(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockCredentialStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newTestService(t, store, hasher, &fakeClock{now: time.Now()})

	store.On("FindByEmail", mock.Anything, "ghost@x.com").Return(nil, auth.ErrNotFound)
	// The dummy hash is computed once by the configured hasher.
	hasher.On("Hash", mock.AnythingOfType("string")).Return("$dummy$hash", nil).Once()
	hasher.On("Verify", "pw123", "$dummy$hash").Return(false, nil).Twice()

	for range 2 {
		_, err := svc.Login(ctx, auth.LoginRequest{Email: "ghost@x.com", Password: "pw123"})
		errutil.AssertOutcome(t, err, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	}
}

func TestService_LoginDummyVerifyNeverSucceeds(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockCredentialStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newTestService(t, store, hasher, &fakeClock{now: time.Now()})

	store.On("FindByEmail", mock.Anything, "ghost@x.com").Return(nil, auth.ErrNotFound)
	hasher.On("Hash", mock.AnythingOfType("string")).Return("$dummy$hash", nil)
	hasher.On("Verify", "pw123", "$dummy$hash").Return(true, nil)

	result, err := svc.Login(ctx, auth.LoginRequest{Email: "ghost@x.com", Password: "pw123"})
	assert.Nil(t, result)
	errutil.AssertOutcome(t, err, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
}

func TestService_LoginValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, mocks.NewMockCredentialStore(t), mocks.NewMockPasswordHasher(t), &fakeClock{now: time.Now()})

	_, err := svc.Login(ctx, auth.LoginRequest{Email: " ", Password: "pw123"})
	errutil.AssertOutcome(t, err, auth.ErrInvalidInput, auth.CodeInvalidInput)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: ""})
	errutil.AssertOutcome(t, err, auth.ErrInvalidInput, auth.CodeInvalidInput)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: strings.Repeat("p", auth.MaxPasswordLength+1)})
	errutil.AssertOutcome(t, err, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
}

func TestService_LoginCorruptStoredHashLooksLikeUnknownEmail(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockCredentialStore(t)
	var buf bytes.Buffer
	svc, err := auth.NewServiceWithLogger(store, fastArgon2(t), newIssuer(t, &fakeClock{now: time.Now()}),
		time.Hour, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)

	store.On("FindByEmail", mock.Anything, "a@x.com").Return(&auth.Account{
		ID:           ulid.Make(),
		Email:        "a@x.com",
		PasswordHash: "corrupt",
	}, nil)
	store.On("FindByEmail", mock.Anything, "nobody@x.com").Return(nil, auth.ErrNotFound)

	_, corruptErr := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw123"})
	_, unknownErr := svc.Login(ctx, auth.LoginRequest{Email: "nobody@x.com", Password: "pw123"})

	errutil.AssertOutcome(t, corruptErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	errutil.AssertOutcome(t, unknownErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), corruptErr.Error())
	assert.Equal(t, auth.OutcomeInvalidCredentials, auth.Outcome(corruptErr))
	assert.Contains(t, buf.String(), "stored password hash rejected")
	assert.Contains(t, buf.String(), "account_id")
}

func TestService_LoginAfterHasherChange(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := memory.New()

	argonHasher, err := auth.NewPasswordHasher(auth.HasherOptions{
		Algorithm: auth.AlgorithmArgon2id,
		Argon2id:  auth.Argon2idParams{MemoryKiB: 1024, Iterations: 1, Parallelism: 1},
	})
	require.NoError(t, err)
	bcryptHasher, err := auth.NewPasswordHasher(auth.HasherOptions{Algorithm: auth.AlgorithmBcrypt, BcryptCost: 4})
	require.NoError(t, err)

	_, err = newTestService(t, store, argonHasher, clock).Register(ctx, adaRequest())
	require.NoError(t, err)

	bcryptSvc := newTestService(t, store, bcryptHasher, clock)
	result, err := bcryptSvc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)

	_, wrongErr := bcryptSvc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "nope"})
	_, unknownErr := bcryptSvc.Login(ctx, auth.LoginRequest{Email: "nobody@x.com", Password: "pw123"})
	errutil.AssertOutcome(t, wrongErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	errutil.AssertOutcome(t, unknownErr, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)

	// Accounts registered after the switch get bcrypt hashes and still
	// verify when switching back.
	bob := adaRequest()
	bob.Email = "b@x.com"
	_, err = bcryptSvc.Register(ctx, bob)
	require.NoError(t, err)
	stored, err := store.FindByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.AlgorithmBcrypt, auth.HashAlgorithm(stored.PasswordHash))

	_, err = newTestService(t, store, argonHasher, clock).Login(ctx, auth.LoginRequest{Email: "b@x.com", Password: "pw123"})
	require.NoError(t, err)
}

func TestService_TokenSubjectIsCanonicalEmail(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, memory.New(), fastArgon2(t), clock)

	_, err := svc.Register(ctx, adaRequest())
	require.NoError(t, err)

	result, err := svc.Login(ctx, auth.LoginRequest{Email: "A@X.COM", Password: "pw123"})
	require.NoError(t, err)

	subject, err := newIssuer(t, clock).Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := memory.New()
	svc := newTestService(t, store, fastArgon2(t), clock)

	_, err := svc.Register(ctx, adaRequest())
	require.NoError(t, err)
	result, err := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw123"})
	require.NoError(t, err)

	t.Run("valid token resolves account", func(t *testing.T) {
		view, err := svc.Authenticate(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", view.Email)
		assert.Equal(t, "BR", view.Country)
	})

	t.Run("tampered token is invalid", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, tamper(result.AccessToken))
		errutil.AssertOutcome(t, err, auth.ErrTokenInvalid, auth.CodeTokenInvalid)
	})

	t.Run("unknown subject is invalid", func(t *testing.T) {
		tok, err := newIssuer(t, clock).Issue("ghost@x.com", time.Hour)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, tok.Token)
		errutil.AssertOutcome(t, err, auth.ErrTokenInvalid, auth.CodeTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		clock.now = start.Add(time.Hour)
		defer func() { clock.now = start }()
		_, err := svc.Authenticate(ctx, result.AccessToken)
		errutil.AssertOutcome(t, err, auth.ErrTokenExpired, auth.CodeTokenExpired)
	})
}

func TestService_DefaultLifetime(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	issuer := newIssuer(t, clock)

	svc, err := auth.NewService(memory.New(), fastArgon2(t), issuer, 0)
	require.NoError(t, err)

	_, err = svc.Register(ctx, adaRequest())
	require.NoError(t, err)
	result, err := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw123"})
	require.NoError(t, err)

	clock.now = start.Add(auth.DefaultTokenLifetime - time.Second)
	_, err = issuer.Verify(result.AccessToken)
	require.NoError(t, err)

	clock.now = start.Add(auth.DefaultTokenLifetime)
	_, err = issuer.Verify(result.AccessToken)
	assert.True(t, errors.Is(err, auth.ErrTokenExpired))
}

func TestService_NeverLogsSecrets(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc, err := auth.NewServiceWithLogger(memory.New(), fastArgon2(t), newIssuer(t, &fakeClock{now: time.Now()}), time.Hour, logger)
	require.NoError(t, err)

	req := adaRequest()
	req.Password = "very-secret-pw"
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)
	result, err := svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "very-secret-pw"})
	require.NoError(t, err)

	logs := buf.String()
	assert.NotEmpty(t, logs)
	assert.NotContains(t, logs, "very-secret-pw")
	assert.NotContains(t, logs, "$argon2id$")
	assert.NotContains(t, logs, result.AccessToken)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, auth.OutcomeSuccess},
		{auth.ErrInvalidInput, auth.OutcomeInvalidInput},
		{auth.ErrDuplicateEmail, auth.OutcomeDuplicateEmail},
		{auth.ErrInvalidCredentials, auth.OutcomeInvalidCredentials},
		{auth.ErrTokenInvalid, auth.OutcomeTokenInvalid},
		{auth.ErrTokenExpired, auth.OutcomeTokenExpired},
		{errors.New("boom"), auth.OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Outcome(tt.err))
		})
	}
}
