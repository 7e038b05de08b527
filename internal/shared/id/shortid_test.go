package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	sid, err := Generate(DefaultLength)
	require.NoError(t, err)
	assert.Len(t, sid, DefaultLength)

	for _, c := range sid {
		assert.True(t, strings.ContainsRune(alphabet, c), "unexpected character %q", c)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		sid, err := Generate(DefaultLength)
		require.NoError(t, err)
		_, dup := seen[sid]
		require.False(t, dup, "duplicate short ID %s", sid)
		seen[sid] = struct{}{}
	}
}

func TestPrefixedSIDs(t *testing.T) {
	userSID, err := NewUserSID()
	require.NoError(t, err)
	assert.True(t, IsUserSID(userSID))
	assert.False(t, IsNodeSID(userSID))

	nodeSID, err := NewNodeSID()
	require.NoError(t, err)
	assert.True(t, IsNodeSID(nodeSID))

	sessionSID, err := NewSessionSID()
	require.NoError(t, err)
	assert.True(t, IsSessionSID(sessionSID))

	txSID, err := NewTransactionSID()
	require.NoError(t, err)
	assert.NoError(t, ValidatePrefix(txSID, PrefixTransaction))
}

func TestParsePrefixedID(t *testing.T) {
	prefix, short, err := ParsePrefixedID("n_xK9mP2vL3nQa")
	require.NoError(t, err)
	assert.Equal(t, "n", prefix)
	assert.Equal(t, "xK9mP2vL3nQa", short)

	_, _, err = ParsePrefixedID("noprefix")
	assert.Error(t, err)

	_, _, err = ParsePrefixedID("_empty")
	assert.Error(t, err)
}
