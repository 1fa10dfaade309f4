package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHandler hashes passwords and verifies them against stored hashes.
// Verify returns false, nil on a mismatch and an error only when the stored
// hash cannot be used.
type PasswordHandler interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// Ensure Bcrypt implements PasswordHandler
var _ PasswordHandler = (*Bcrypt)(nil)

// DefaultBcryptCost matches the cost the account database was seeded with.
const DefaultBcryptCost = 10

// bcrypt only reads the first 72 bytes of a password.
const maxBcryptPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password is too long")

type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a bcrypt hasher. Costs outside bcrypt's range fall back
// to DefaultBcryptCost.
func NewBcrypt(cost ...int) *Bcrypt {
	c := DefaultBcryptCost
	if len(cost) > 0 && cost[0] >= bcrypt.MinCost && cost[0] <= bcrypt.MaxCost {
		c = cost[0]
	}
	return &Bcrypt{Cost: c}
}

// Hash salts and hashes the password. bcrypt draws a fresh salt per call.
func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > maxBcryptPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}
