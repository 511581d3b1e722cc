// Package keygen mints random short keys for mappings.
package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// MinLength and MaxLength bound the standard minted key length.
	MinLength = 6
	MaxLength = 8

	// EscalatedLength is used after repeated collisions exhaust the
	// standard retry budget.
	EscalatedLength = 10

	// MaxKeyLength is the upper bound accepted for stored keys.
	MaxKeyLength = 20
)

// Mint returns a random key of uniform random length in [MinLength, MaxLength].
func Mint() (string, error) {
	span := int64(MaxLength - MinLength + 1)
	n, err := cryptoRandInt(span)
	if err != nil {
		return "", err
	}
	return MintOfLength(MinLength + int(n))
}

// MintOfLength returns a random key of exactly n characters.
func MintOfLength(n int) (string, error) {
	if n <= 0 || n > MaxKeyLength {
		return "", fmt.Errorf("invalid key length %d", n)
	}
	buf := make([]byte, n)
	for i := range buf {
		idx, err := cryptoRandInt(int64(len(alphabet)))
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx]
	}
	return string(buf), nil
}

// IsWellFormed reports whether k could have been minted here:
// non-empty, at most MaxKeyLength, alphanumeric only.
func IsWellFormed(k string) bool {
	if k == "" || len(k) > MaxKeyLength {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// cryptoRandInt returns a uniform random int in [0, max) using crypto/rand.
func cryptoRandInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return n.Int64(), nil
}
