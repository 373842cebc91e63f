// Package crypto hashes and checks passwords.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for stored passwords
const DefaultCost = 10

// ErrMismatch is returned when a password does not match its hash
var ErrMismatch = errors.New("password does not match")

// BcryptHasher hashes passwords with bcrypt
type BcryptHasher struct {
	Cost int
}

// NewHasher returns a hasher with DefaultCost
func NewHasher() *BcryptHasher {
	return &BcryptHasher{Cost: DefaultCost}
}

// Hash returns the bcrypt hash of password
func (h *BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Check compares password with hash. It returns ErrMismatch when they differ.
func (h *BcryptHasher) Check(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		// Malformed hashes, such as the system admin's placeholder, never match.
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return nil
}
