// Package id generates short base62 identifiers with Stripe-style type
// prefixes. The prefixed SID is the only identity ever exposed outside the
// service; numeric database IDs stay internal.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the default length for generated short IDs
	DefaultLength = 12
)

// Prefixes for the broker entity types
const (
	PrefixUser        = "u"
	PrefixNode        = "n"
	PrefixSession     = "s"
	PrefixTransaction = "tx"
)

// Generate creates a random short ID with the specified length using Base62
// encoding. The generated ID is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// GenerateWithPrefix creates a prefixed ID in the format "prefix_randomstring".
func GenerateWithPrefix(prefix string, length int) (string, error) {
	id, err := Generate(length)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}

// MustGenerateWithPrefix creates a prefixed ID and panics on error.
func MustGenerateWithPrefix(prefix string, length int) string {
	id, err := GenerateWithPrefix(prefix, length)
	if err != nil {
		panic(err)
	}
	return id
}

// ParsePrefixedID extracts the prefix and short ID from a prefixed ID string.
func ParsePrefixedID(prefixedID string) (prefix, shortID string, err error) {
	parts := strings.SplitN(prefixedID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid prefixed ID format: %s", prefixedID)
	}
	return parts[0], parts[1], nil
}

// ValidatePrefix checks if the prefixed ID has the expected prefix.
func ValidatePrefix(prefixedID, expectedPrefix string) error {
	prefix, _, err := ParsePrefixedID(prefixedID)
	if err != nil {
		return err
	}
	if prefix != expectedPrefix {
		return fmt.Errorf("invalid prefix: expected %s, got %s", expectedPrefix, prefix)
	}
	return nil
}

// NewUserSID generates a new user SID.
func NewUserSID() (string, error) {
	return GenerateWithPrefix(PrefixUser, DefaultLength)
}

// NewNodeSID generates a new node SID.
func NewNodeSID() (string, error) {
	return GenerateWithPrefix(PrefixNode, DefaultLength)
}

// NewSessionSID generates a new session SID.
func NewSessionSID() (string, error) {
	return GenerateWithPrefix(PrefixSession, DefaultLength)
}

// NewTransactionSID generates a new credit transaction SID.
func NewTransactionSID() (string, error) {
	return GenerateWithPrefix(PrefixTransaction, DefaultLength)
}

// IsUserSID reports whether the given string is a well-formed user SID.
func IsUserSID(sid string) bool {
	return ValidatePrefix(sid, PrefixUser) == nil
}

// IsNodeSID reports whether the given string is a well-formed node SID.
func IsNodeSID(sid string) bool {
	return ValidatePrefix(sid, PrefixNode) == nil
}

// IsSessionSID reports whether the given string is a well-formed session SID.
func IsSessionSID(sid string) bool {
	return ValidatePrefix(sid, PrefixSession) == nil
}
