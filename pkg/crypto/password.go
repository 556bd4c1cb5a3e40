package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var (
	// ErrPasswordEmpty rejects blank operator passwords.
	ErrPasswordEmpty = errors.New("password must not be empty")
	// ErrPasswordTooLong rejects input bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrPasswordMismatch is returned when a candidate does not match the hash.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// HashPassword hashes plaintext with bcrypt at the given cost. A cost of
// zero selects bcrypt.DefaultCost.
func HashPassword(plain string, cost int) ([]byte, error) {
	if plain == "" {
		return nil, ErrPasswordEmpty
	}
	if len(plain) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(plain), cost)
}

// ComparePassword checks plaintext against a bcrypt hash.
func ComparePassword(hash []byte, plain string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
