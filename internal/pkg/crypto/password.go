// Package crypto provides password hashing for Waverly Store.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultSalt is the fixed application-wide salt used by the legacy hasher.
// A fixed salt (rather than per-user random salts) is a known weakness kept
// deliberately: it matches the hashes already on disk from the original
// deployment and keeps verification a pure recompute-and-compare. Switching
// to the bcrypt hasher is the supported hardening path, but it invalidates
// every stored hash, so it is opt-in via configuration and never applied
// silently.
const DefaultSalt = "mobile-store-salt"

// PasswordHasher derives a verifiable, non-reversible representation of a
// password and verifies candidates against it.
type PasswordHasher interface {
	// Hash derives the stored representation of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored representation.
	Verify(hash, password string) bool
}

// LegacyHasher is the deterministic scheme of the original deployment:
// lowercase hex of SHA-256(password + salt). Same input always yields the
// same output, so verification is an equality check without storing
// plaintext.
type LegacyHasher struct {
	salt string
}

// NewLegacyHasher creates a LegacyHasher with the given fixed salt.
// An empty salt falls back to DefaultSalt.
func NewLegacyHasher(salt string) *LegacyHasher {
	if salt == "" {
		salt = DefaultSalt
	}
	return &LegacyHasher{salt: salt}
}

// Hash returns hex(SHA-256(password + salt)).
func (h *LegacyHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password + h.salt))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the hash and compares in constant time.
func (h *LegacyHasher) Verify(hash, password string) bool {
	computed, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// BcryptHasher is the hardened, per-hash-salted scheme. Not deterministic;
// stored legacy hashes cannot be verified with it.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given cost.
// Costs outside bcrypt's valid range fall back to the default cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

// Verify compares password against the stored bcrypt hash.
func (h *BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Ensure both hashers implement PasswordHasher.
var (
	_ PasswordHasher = (*LegacyHasher)(nil)
	_ PasswordHasher = (*BcryptHasher)(nil)
)
