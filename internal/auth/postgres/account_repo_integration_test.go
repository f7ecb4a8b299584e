// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/auth/postgres"
)

func mustDraft(email string) auth.AccountDraft {
	d, err := auth.NewAccountDraft("Ada", "Lovelace", email, "$argon2id$hash", "UK", true)
	Expect(err).NotTo(HaveOccurred())
	return d
}

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(testPool)
		_, err := testPool.Exec(ctx, `DELETE FROM accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Insert", func() {
		It("stores an account that FindByEmail returns", func() {
			inserted, err := repo.Insert(ctx, mustDraft("ada@example.com"))
			Expect(err).NotTo(HaveOccurred())

			found, err := repo.FindByEmail(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(inserted.ID))
			Expect(found.PasswordHash).To(Equal("$argon2id$hash"))
			Expect(found.CreatedAt.Equal(inserted.CreatedAt)).To(BeTrue())
		})

		It("reports a duplicate email as ErrDuplicateKey", func() {
			_, err := repo.Insert(ctx, mustDraft("ada@example.com"))
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.Insert(ctx, mustDraft("ada@example.com"))
			Expect(errors.Is(err, auth.ErrDuplicateKey)).To(BeTrue())
		})

		It("rejects a non-canonical email at the database", func() {
			draft := mustDraft("ada@example.com")
			draft.Email = "Ada@Example.com"
			_, err := repo.Insert(ctx, draft)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, auth.ErrDuplicateKey)).To(BeFalse())
		})

		It("lets exactly one of many concurrent inserts win", func() {
			draft := mustDraft("race@example.com")
			var wg sync.WaitGroup
			var wins, dups atomic.Int32
			for range 10 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := repo.Insert(ctx, draft)
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, auth.ErrDuplicateKey):
						dups.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(wins.Load()).To(Equal(int32(1)))
			Expect(dups.Load()).To(Equal(int32(9)))
		})
	})

	Describe("FindByEmail", func() {
		It("returns ErrNotFound for an unknown email", func() {
			_, err := repo.FindByEmail(ctx, "nobody@example.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})
