package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost matches the work factor used for all stored credentials.
const passwordHashCost = 10

// ErrPasswordMismatch indicates the supplied password does not match the stored hash.
var ErrPasswordMismatch = errors.New("auth: password mismatch")

// PasswordHasher wraps bcrypt so the cost can be lowered in tests.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher at the production cost factor.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: passwordHashCost}
}

// NewPasswordHasherWithCost returns a hasher with an explicit cost. Tests use
// bcrypt.MinCost to keep hashing cheap.
func NewPasswordHasherWithCost(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted bcrypt hash from the plaintext password.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates input beyond 72 bytes.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext password matches the stored hash.
func (h *PasswordHasher) Verify(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
