package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func testAccount(t *testing.T) *user.User {
	t.Helper()
	now := time.Now().UTC()
	account, err := user.ReconstructUser(
		1, "u_test123", "alice", "hashed:correct-horse",
		authorization.RoleUser, 100, 0, 1, now, now,
	)
	require.NoError(t, err)
	return account
}

func TestLoginUseCase_Execute_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(testAccount(t), nil)

	uc := NewLoginUseCase(userRepo, stubHasher{}, &stubTokenIssuer{}, logger.NewLogger())

	result, err := uc.Execute(context.Background(), LoginCommand{
		Username: "Alice",
		Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.Equal(t, "u_test123", result.UserSID)
	assert.Equal(t, "access-u_test123", result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
}

func TestLoginUseCase_Execute_WrongPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "alice").Return(testAccount(t), nil)

	uc := NewLoginUseCase(userRepo, stubHasher{}, &stubTokenIssuer{}, logger.NewLogger())

	_, err := uc.Execute(context.Background(), LoginCommand{
		Username: "alice",
		Password: "wrong",
	})

	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeUnauthorized, appErr.Type)
}

func TestLoginUseCase_Execute_UnknownUserSameError(t *testing.T) {
	userRepo := new(mockUserRepository)
	userRepo.On("GetByUsername", mock.Anything, "ghost").
		Return(nil, errors.NewNotFoundError("user not found"))

	uc := NewLoginUseCase(userRepo, stubHasher{}, &stubTokenIssuer{}, logger.NewLogger())

	_, err := uc.Execute(context.Background(), LoginCommand{
		Username: "ghost",
		Password: "whatever1",
	})

	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeUnauthorized, appErr.Type)
	assert.Equal(t, "invalid credentials", appErr.Message, "unknown user and wrong password must be indistinguishable")
}

func TestRefreshTokenUseCase_Execute(t *testing.T) {
	uc := NewRefreshTokenUseCase(&stubTokenIssuer{}, logger.NewLogger())

	result, err := uc.Execute(context.Background(), RefreshTokenCommand{RefreshToken: "refresh-u_test123"})
	require.NoError(t, err)
	assert.Equal(t, "access-rotated", result.AccessToken)

	rejecting := NewRefreshTokenUseCase(&stubTokenIssuer{refreshErr: fmt.Errorf("expired")}, logger.NewLogger())
	_, err = rejecting.Execute(context.Background(), RefreshTokenCommand{RefreshToken: "stale"})
	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeUnauthorized, appErr.Type)
}
