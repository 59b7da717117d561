package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is the single configured admin login pair; the password is
// stored only as a bcrypt hash.
type Credentials struct {
	Email        string
	PasswordHash string
}

// Check compares a login attempt against the configured pair. Both the
// unknown-email and wrong-password cases collapse into the same error.
func (c Credentials) Check(email, password string) error {
	if !strings.EqualFold(strings.TrimSpace(email), c.Email) {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
