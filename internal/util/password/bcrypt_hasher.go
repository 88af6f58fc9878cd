package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrTooLong is returned by Hash when the password exceeds bcrypt's 72 byte input limit.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// MaxLength is the longest plaintext, in bytes, that Hash accepts.
const MaxLength = 72

// HasherConfig holds configuration for the bcrypt hasher.
type HasherConfig struct {
	// Cost is the bcrypt work factor. Values outside [4, 31] are clamped.
	Cost int `env:"COST" envDefault:"10"`
}

// Hasher produces and checks opaque password hashes.
type Hasher interface {
	// Hash returns a salted one-way hash of plaintext.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext produced hash.
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	cost int
}

var _ Hasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a BcryptHasher with the configured cost.
func NewBcryptHasher(cfg HasherConfig) *BcryptHasher {
	cost := cfg.Cost

	switch {
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}

	return &BcryptHasher{cost: cost}
}

// Hash implements Hasher.Hash. Every call draws a fresh salt.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrTooLong
		}

		return "", fmt.Errorf("generate hash: %w", err)
	}

	return string(hash), nil
}

// Verify implements Hasher.Verify. Malformed hashes never match.
// bcrypt ignores input past MaxLength, so longer plaintexts never match either.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if len(plaintext) > MaxLength {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
