// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package sqlite implements auth.CredentialStore on an embedded sqlite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/aegis-auth/aegis/internal/auth"
)

// AccountRepository implements auth.CredentialStore using sqlite.
// The schema is created by the sqlite migrations in internal/store.
type AccountRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// FindByEmail retrieves an account by canonical email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash,
		       country, agreed_to_terms, created_at
		FROM accounts
		WHERE email = ?
	`, email)

	var (
		a         auth.Account
		id        string
		createdAt int64
	)
	err := row.Scan(&id, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.Country, &a.AgreedToTerms, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "find account by email").
			Wrap(err)
	}

	a.ID, err = ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "parse account id").
			With("id", id).
			Wrap(err)
	}
	a.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &a, nil
}

// Insert stores a new account. ON CONFLICT DO NOTHING turns a lost race on
// the unique email into zero affected rows instead of a driver error.
func (r *AccountRepository) Insert(ctx context.Context, draft auth.AccountDraft) (*auth.Account, error) {
	account := auth.NewAccount(draft, r.now().UTC().Truncate(time.Microsecond))

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, first_name, last_name, email, password_hash,
			country, agreed_to_terms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`,
		account.ID.String(),
		account.FirstName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.Country,
		account.AgreedToTerms,
		account.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return nil, oops.Code("ACCOUNT_DUPLICATE").
			With("email", draft.Email).
			Wrap(auth.ErrDuplicateKey)
	}
	return account, nil
}

// Ping reports whether the database file is reachable.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var _ auth.CredentialStore = (*AccountRepository)(nil)
