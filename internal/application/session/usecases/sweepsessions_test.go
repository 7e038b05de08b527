package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func TestSweepSessions_TimesOutGracedSessions(t *testing.T) {
	owner := uintPtr(9)
	frozen := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	grace := 2 * time.Minute

	sessionRepo := new(mockSessionRepository)
	nodeRepo := new(mockNodeRepository)
	ledgerRepo := new(mockLedgerRepository)
	log := logger.NewLogger()

	closer := NewCloseSessionService(
		sessionRepo, nodeRepo, ledgerRepo, testSettlementPolicy(),
		passthroughTxManager{}, nil, log,
	)
	uc := NewSweepSessionsUseCase(sessionRepo, closer, grace, func() time.Time { return frozen }, log)

	stale := []*session.Session{
		newOpenSession(t, 10, 5, owner, 3, 0, session.StatusMatched),
		newOpenSession(t, 11, 5, owner, 4, 0, session.StatusMatched),
	}
	closing := newClosingSession(t, 10, 5, owner, 3, 0, session.CloseGraceTimeout)

	sessionRepo.On("ListMatchedBefore", mock.Anything, frozen.Add(-grace)).Return(stale, nil)
	sessionRepo.On("BeginClose", mock.Anything, uint(10), session.CloseGraceTimeout).Return(true, nil)
	sessionRepo.On("BeginClose", mock.Anything, uint(11), session.CloseGraceTimeout).Return(false, nil)
	sessionRepo.On("GetByID", mock.Anything, uint(10)).Return(closing, nil)
	sessionRepo.On("Update", mock.Anything, closing).Return(nil)
	nodeRepo.On("ReleaseSlot", mock.Anything, uint(5)).Return(nil)

	closed, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	// Zero bytes relayed: the sweep settles nothing.
	ledgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestSweepSessions_NothingToSweep(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	log := logger.NewLogger()
	closer := NewCloseSessionService(
		sessionRepo, new(mockNodeRepository), new(mockLedgerRepository),
		testSettlementPolicy(), passthroughTxManager{}, nil, log,
	)
	uc := NewSweepSessionsUseCase(sessionRepo, closer, time.Minute, nil, log)

	sessionRepo.On("ListMatchedBefore", mock.Anything, mock.Anything).Return([]*session.Session{}, nil)

	closed, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, closed)
}
