package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/shared/authorization"
)

func TestJWTServiceGenerateAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret", 15, 7)

	pair, err := svc.Generate("u_abc123", authorization.RoleUser)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(15*60), pair.ExpiresIn)

	claims, err := svc.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u_abc123", claims.UserSID)
	assert.Equal(t, authorization.RoleUser, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestJWTServiceRejectsWrongSecret(t *testing.T) {
	svc := NewJWTService("secret-a", 15, 7)
	other := NewJWTService("secret-b", 15, 7)

	pair, err := svc.Generate("u_abc123", authorization.RoleUser)
	require.NoError(t, err)

	_, err = other.Verify(pair.AccessToken)
	assert.Error(t, err)
}

func TestJWTServiceRefreshRotation(t *testing.T) {
	svc := NewJWTService("test-secret", 15, 7)

	pair, err := svc.Generate("u_abc123", authorization.RoleAdmin)
	require.NoError(t, err)

	rotated, err := svc.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)

	claims, err := svc.Verify(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, authorization.RoleAdmin, claims.Role)

	// An access token must not pass as a refresh token.
	_, err = svc.Refresh(pair.AccessToken)
	assert.Error(t, err)
}

func TestHashNodeToken(t *testing.T) {
	h1 := HashNodeToken("node_abc")
	h2 := HashNodeToken("node_abc")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashNodeToken("node_abd"))

	assert.True(t, IsNodeToken("node_abc"))
	assert.False(t, IsNodeToken("eyJhbGciOi"))
}

func TestBcryptPasswordHasher(t *testing.T) {
	hasher := NewBcryptPasswordHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, hasher.Verify("correct horse battery staple", hash))
	assert.Error(t, hasher.Verify("wrong password", hash))
}
