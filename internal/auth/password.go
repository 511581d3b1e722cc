// Package auth provides password protection for mappings.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost 12 keeps verification around 250ms on commodity hardware,
// which doubles as throttling on the unlock endpoint.
const hashCost = 12

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 4
	// MaxPasswordLength is the longest accepted password.
	MaxPasswordLength = 128
)

var (
	// ErrPasswordLength indicates the password is outside the accepted bounds.
	ErrPasswordLength = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	// ErrPasswordMismatch indicates the password does not match the stored hash.
	ErrPasswordMismatch = errors.New("password does not match")
)

// prehash folds a password of any accepted length into a fixed-size
// input for bcrypt, which silently caps at 72 bytes. Base64 keeps the
// digest free of NUL bytes.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashPassword validates the password length and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrPasswordLength
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a candidate password against a stored hash.
// The comparison is constant time. Returns ErrPasswordMismatch when the
// candidate is wrong, or another error for malformed hashes.
func VerifyPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}
