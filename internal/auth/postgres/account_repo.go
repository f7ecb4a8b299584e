// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/aegis-auth/aegis/internal/auth"
)

// poolIface is the subset of pgxpool.Pool used by the repository, so tests
// can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// emailConstraint is the unique constraint backing duplicate detection.
const emailConstraint = "accounts_email_key"

// AccountRepository implements auth.CredentialStore using PostgreSQL.
type AccountRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool, now: time.Now}
}

// FindByEmail retrieves an account by canonical email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, password_hash,
		       country, agreed_to_terms, created_at
		FROM accounts
		WHERE email = $1
	`, email)

	var (
		a  auth.Account
		id string
	)
	err := row.Scan(&id, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.Country, &a.AgreedToTerms, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
	return &a, nil
}

// Insert stores a new account. The unique constraint on email makes the
// duplicate check and the write a single statement.
func (r *AccountRepository) Insert(ctx context.Context, draft auth.AccountDraft) (*auth.Account, error) {
	// Postgres keeps microseconds; truncate so the returned value round-trips.
	account := auth.NewAccount(draft, r.now().UTC().Truncate(time.Microsecond))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, first_name, last_name, email, password_hash,
			country, agreed_to_terms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.ID.String(),
		account.FirstName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.Country,
		account.AgreedToTerms,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == emailConstraint {
			return nil, oops.Code("ACCOUNT_DUPLICATE").
				With("email", draft.Email).
				Wrap(auth.ErrDuplicateKey)
		}
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return account, nil
}

var _ auth.CredentialStore = (*AccountRepository)(nil)
