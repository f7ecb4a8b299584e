// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field length limits.
const (
	MaxEmailLength = 254
	MaxNameLength  = 100
)

// Account represents a registered user account.
type Account struct {
	ID            ulid.ULID
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Country       string
	AgreedToTerms bool
	CreatedAt     time.Time
}

// AccountView is the public representation of an Account.
type AccountView struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Country   string `json:"country"`
}

// View returns the fields of the account that may leave the service.
func (a *Account) View() *AccountView {
	return &AccountView{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Country:   a.Country,
	}
}

// LogValue keeps the password hash out of structured logs.
func (a *Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.ID.String()),
		slog.String("email", a.Email),
	)
}

// AccountDraft holds a validated, not yet persisted account.
// The store assigns ID and CreatedAt on insert.
type AccountDraft struct {
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Country       string
	AgreedToTerms bool
}

// NewAccountDraft creates a validated AccountDraft.
// The email must already be canonical (see NormalizeEmail).
func NewAccountDraft(firstName, lastName, email, passwordHash, country string, agreedToTerms bool) (AccountDraft, error) {
	if err := ValidateEmail(email); err != nil {
		return AccountDraft{}, err
	}
	if email != NormalizeEmail(email) {
		return AccountDraft{}, invalidInput("email", "email must be in canonical lowercase form")
	}
	if passwordHash == "" {
		return AccountDraft{}, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if err := ValidateProfile(firstName, lastName, country); err != nil {
		return AccountDraft{}, err
	}
	return AccountDraft{
		FirstName:     strings.TrimSpace(firstName),
		LastName:      strings.TrimSpace(lastName),
		Email:         email,
		PasswordHash:  passwordHash,
		Country:       strings.TrimSpace(country),
		AgreedToTerms: agreedToTerms,
	}, nil
}

// ValidateProfile checks the free-text account fields. Surrounding
// whitespace is ignored.
func ValidateProfile(firstName, lastName, country string) error {
	if err := validateText("firstName", strings.TrimSpace(firstName)); err != nil {
		return err
	}
	if err := validateText("lastName", strings.TrimSpace(lastName)); err != nil {
		return err
	}
	return validateText("country", strings.TrimSpace(country))
}

// NewAccount materializes a draft into an Account with a fresh ID.
// Store implementations call this from Insert.
func NewAccount(draft AccountDraft, createdAt time.Time) *Account {
	return &Account{
		ID:            ulid.Make(),
		FirstName:     draft.FirstName,
		LastName:      draft.LastName,
		Email:         draft.Email,
		PasswordHash:  draft.PasswordHash,
		Country:       draft.Country,
		AgreedToTerms: draft.AgreedToTerms,
		CreatedAt:     createdAt,
	}
}

// NormalizeEmail returns the canonical form of an email address used for
// storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare, structurally valid address.
func ValidateEmail(email string) error {
	if email == "" {
		return invalidInput("email", "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return invalidInput("email", "email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return invalidInput("email", "email is not a valid address")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return invalidInput("email", "email is not a valid address")
	}
	return nil
}

func validateText(field, value string) error {
	if value == "" {
		return invalidInput(field, field+" cannot be empty")
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		return oops.Code(CodeInvalidInput).
			With("field", field).
			With("max", MaxNameLength).
			Wrapf(ErrInvalidInput, "%s must be at most %d characters", field, MaxNameLength)
	}
	return nil
}

func invalidInput(field, msg string) error {
	return oops.Code(CodeInvalidInput).With("field", field).Wrapf(ErrInvalidInput, "%s", msg)
}

// CredentialStore persists accounts.
type CredentialStore interface {
	// FindByEmail retrieves an account by canonical email.
	// Returns ErrNotFound if no account has the given email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Insert stores a new account and returns it with ID and CreatedAt set.
	// Returns ErrDuplicateKey if the email is taken. The uniqueness check and
	// the write are a single atomic operation.
	Insert(ctx context.Context, draft AccountDraft) (*Account, error)
}
