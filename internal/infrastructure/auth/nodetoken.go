package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NodeTokenPrefix marks agent API tokens so they are recognizable in logs
// without exposing the secret part.
const NodeTokenPrefix = "node_"

// HashNodeToken derives the stored lookup hash for an agent API token. Only
// the hash is persisted; the broker cannot recover the plain token.
func HashNodeToken(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

// IsNodeToken reports whether the credential looks like an agent API token.
func IsNodeToken(token string) bool {
	return strings.HasPrefix(token, NodeTokenPrefix)
}
