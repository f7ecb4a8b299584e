// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package redisstore implements auth.CredentialStore on Redis, one JSON
// document per account keyed by canonical email.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/aegis-auth/aegis/internal/auth"
)

// DefaultPrefix namespaces account keys.
const DefaultPrefix = "aegis:account"

// record is the stored form of an account.
type record struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	PasswordHash  string `json:"passwordHash"`
	Country       string `json:"country"`
	AgreedToTerms bool   `json:"agreedToTerms"`
	CreatedAt     int64  `json:"createdAt"`
}

// Store implements auth.CredentialStore using Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a Store. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func (s *Store) key(email string) string {
	return s.prefix + ":" + email
}

// FindByEmail retrieves an account by canonical email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "get account").
			Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "decode account").
			Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").
			With("operation", "parse account id").
			With("id", rec.ID).
			Wrap(err)
	}

	return &auth.Account{
		ID:            id,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Email:         rec.Email,
		PasswordHash:  rec.PasswordHash,
		Country:       rec.Country,
		AgreedToTerms: rec.AgreedToTerms,
		CreatedAt:     time.UnixMicro(rec.CreatedAt).UTC(),
	}, nil
}

// Insert stores a new account with SET NX, so only the first writer for an
// email succeeds.
func (s *Store) Insert(ctx context.Context, draft auth.AccountDraft) (*auth.Account, error) {
	account := auth.NewAccount(draft, s.now().UTC().Truncate(time.Microsecond))

	raw, err := json.Marshal(record{
		ID:            account.ID.String(),
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Email:         account.Email,
		PasswordHash:  account.PasswordHash,
		Country:       account.Country,
		AgreedToTerms: account.AgreedToTerms,
		CreatedAt:     account.CreatedAt.UnixMicro(),
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "encode account").
			Wrap(err)
	}

	set, err := s.client.SetNX(ctx, s.key(account.Email), raw, 0).Result()
	if err != nil {
		return nil, oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "set account").
			Wrap(err)
	}
	if !set {
		return nil, oops.Code("ACCOUNT_DUPLICATE").
			With("email", draft.Email).
			Wrap(auth.ErrDuplicateKey)
	}
	return account, nil
}

// Ping reports whether the Redis server answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("STORE_PING_FAILED").With("driver", "redis").Wrap(err)
	}
	return nil
}

var _ auth.CredentialStore = (*Store)(nil)
