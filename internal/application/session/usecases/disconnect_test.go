package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func TestDisconnect_RejectsForeignSession(t *testing.T) {
	userRepo := new(mockUserRepository)
	sessionRepo := new(mockSessionRepository)
	log := logger.NewLogger()
	closer := NewCloseSessionService(
		sessionRepo, new(mockNodeRepository), new(mockLedgerRepository),
		testSettlementPolicy(), passthroughTxManager{}, nil, log,
	)
	uc := NewDisconnectUseCase(userRepo, sessionRepo, closer, log)

	account := newTestAccount(t, 3)
	foreign := newOpenSession(t, 77, 5, uintPtr(9), 4, 0, session.StatusActive)

	userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	sessionRepo.On("GetBySID", mock.Anything, "s_test123").Return(foreign, nil)

	_, err := uc.Execute(context.Background(), DisconnectCommand{
		UserSID:    "u_client01",
		SessionSID: "s_test123",
	})

	assert.Error(t, err)
	sessionRepo.AssertNotCalled(t, "BeginClose", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisconnect_IsIdempotent(t *testing.T) {
	userRepo := new(mockUserRepository)
	sessionRepo := new(mockSessionRepository)
	log := logger.NewLogger()
	closer := NewCloseSessionService(
		sessionRepo, new(mockNodeRepository), new(mockLedgerRepository),
		testSettlementPolicy(), passthroughTxManager{}, nil, log,
	)
	uc := NewDisconnectUseCase(userRepo, sessionRepo, closer, log)

	account := newTestAccount(t, 3)
	sess := newOpenSession(t, 77, 5, uintPtr(9), 3, 0, session.StatusActive)

	userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	sessionRepo.On("GetBySID", mock.Anything, "s_test123").Return(sess, nil)
	// Another close already won the flip.
	sessionRepo.On("BeginClose", mock.Anything, uint(77), session.CloseClientDisconnect).Return(false, nil)
	sessionRepo.On("GetByID", mock.Anything, uint(77)).Return(sess, nil)

	result, err := uc.Execute(context.Background(), DisconnectCommand{
		UserSID:    "u_client01",
		SessionSID: "s_test123",
	})

	require.NoError(t, err)
	assert.True(t, result.AlreadyClosed)
}
