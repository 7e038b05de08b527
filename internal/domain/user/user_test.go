package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/shared/authorization"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("Alice.Relay", "$2a$12$hash", authorization.RoleUser)
	require.NoError(t, err)

	assert.Equal(t, "alice.relay", u.Username(), "username must normalize to lowercase")
	assert.Equal(t, authorization.RoleUser, u.Role())
	assert.Equal(t, int64(0), u.Credits())
	assert.Equal(t, 1, u.Version())
	assert.NotEmpty(t, u.SID())
	assert.False(t, u.IsAdmin())
}

func TestNewUserValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		hash     string
		role     authorization.UserRole
	}{
		{"too short", "ab", "h", authorization.RoleUser},
		{"leading punctuation", "-alice", "h", authorization.RoleUser},
		{"contains space", "alice smith", "h", authorization.RoleUser},
		{"empty hash", "alice", "", authorization.RoleUser},
		{"invalid role", "alice", "h", authorization.UserRole("superuser")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.username, tt.hash, tt.role)
			assert.Error(t, err)
		})
	}
}

func TestRecordRiskScoreClamps(t *testing.T) {
	u, err := NewUser("alice", "hash", authorization.RoleUser)
	require.NoError(t, err)

	u.RecordRiskScore(150)
	assert.Equal(t, 100, u.RiskScore())

	u.RecordRiskScore(-3)
	assert.Equal(t, 0, u.RiskScore())

	u.RecordRiskScore(42)
	assert.Equal(t, 42, u.RiskScore())
}

func TestSetIDImmutable(t *testing.T) {
	u, err := NewUser("alice", "hash", authorization.RoleUser)
	require.NoError(t, err)

	require.NoError(t, u.SetID(9))
	assert.Error(t, u.SetID(10))
}
