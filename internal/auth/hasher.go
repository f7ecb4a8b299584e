// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"

	"github.com/aegis-auth/aegis/internal/observability"
)

// Supported hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Upper bounds on argon2id cost, applied to configuration and to the
// parameters embedded in stored hashes.
const (
	MaxArgon2idMemoryKiB  = 1 << 20
	MaxArgon2idIterations = 64
)

// Argon2idParams tunes the argon2id work factor.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns the OWASP-recommended argon2id parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// HasherOptions selects and tunes a PasswordHasher.
type HasherOptions struct {
	Algorithm  string
	Argon2id   Argon2idParams
	BcryptCost int
}

// NewPasswordHasher builds a RoutingHasher that hashes with the algorithm
// named by opts.Algorithm. An empty algorithm selects argon2id.
func NewPasswordHasher(opts HasherOptions) (*RoutingHasher, error) {
	h := &RoutingHasher{
		argon2id: NewArgon2idHasher(),
		// Verify-only; bcrypt reads the cost from the stored hash.
		bcrypt: &BcryptHasher{},
	}
	switch opts.Algorithm {
	case "", AlgorithmArgon2id:
		a, err := NewArgon2idHasherWithParams(opts.Argon2id)
		if err != nil {
			return nil, err
		}
		h.algorithm, h.primary, h.argon2id = AlgorithmArgon2id, a, a
	case AlgorithmBcrypt:
		b, err := NewBcryptHasher(opts.BcryptCost)
		if err != nil {
			return nil, err
		}
		h.algorithm, h.primary, h.bcrypt = AlgorithmBcrypt, b, b
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("algorithm", opts.Algorithm).
			Wrapf(ErrConfiguration, "unsupported password hash algorithm %q", opts.Algorithm)
	}
	return h, nil
}

// RoutingHasher hashes new passwords with one configured algorithm and
// verifies stored hashes with whichever algorithm produced them, so
// existing accounts keep working after the configured algorithm changes.
type RoutingHasher struct {
	algorithm string
	primary   PasswordHasher
	argon2id  *Argon2idHasher
	bcrypt    *BcryptHasher
}

// Algorithm returns the algorithm used by Hash.
func (h *RoutingHasher) Algorithm() string {
	return h.algorithm
}

// Hash hashes the password with the configured algorithm.
func (h *RoutingHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the prefix of the stored hash.
func (h *RoutingHasher) Verify(password, hash string) (bool, error) {
	switch HashAlgorithm(hash) {
	case AlgorithmArgon2id:
		return h.argon2id.Verify(password, hash)
	case AlgorithmBcrypt:
		return h.bcrypt.Verify(password, hash)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized hash format")
	}
}

// HashAlgorithm reports which supported algorithm produced an encoded hash,
// or "" when the format is not recognized.
func HashAlgorithm(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher with the default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2idParams()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom parameters.
// Zero-valued fields fall back to the defaults.
func NewArgon2idHasherWithParams(p Argon2idParams) (*Argon2idHasher, error) {
	def := DefaultArgon2idParams()
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = def.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = def.KeyLength
	}
	if p.SaltLength < 8 {
		return nil, oops.Code("CONFIG_INVALID").
			With("salt_length", p.SaltLength).
			Wrapf(ErrConfiguration, "argon2id salt must be at least 8 bytes")
	}
	if p.MemoryKiB > MaxArgon2idMemoryKiB {
		return nil, oops.Code("CONFIG_INVALID").
			With("memory_kib", p.MemoryKiB).
			Wrapf(ErrConfiguration, "argon2id memory must be at most %d KiB", MaxArgon2idMemoryKiB)
	}
	if p.Iterations > MaxArgon2idIterations {
		return nil, oops.Code("CONFIG_INVALID").
			With("iterations", p.Iterations).
			Wrapf(ErrConfiguration, "argon2id iterations must be at most %d", MaxArgon2idIterations)
	}
	if p.KeyLength < 16 {
		return nil, oops.Code("CONFIG_INVALID").
			With("key_length", p.KeyLength).
			Wrapf(ErrConfiguration, "argon2id key must be at least 16 bytes")
	}
	return &Argon2idHasher{params: p}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	defer observability.ObservePasswordHash(AlgorithmArgon2id, "hash", time.Now())

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the hash. The parameters embedded in
// the hash are used, so hashes made with older settings keep verifying.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if iterations < 1 || iterations > MaxArgon2idIterations {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("iterations value %d out of range", iterations)
	}
	if memory < 1 || memory > MaxArgon2idMemoryKiB {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d out of range", memory)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	keyLen := len(expected)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	defer observability.ObservePasswordHash(AlgorithmArgon2id, "verify", time.Now())

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Compile-time interface checks.
var (
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*RoutingHasher)(nil)
)
