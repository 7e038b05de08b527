package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type DisconnectCommand struct {
	UserSID    string
	SessionSID string
}

type DisconnectResult struct {
	SessionSID    string
	CreditsSpent  int64
	CreditsEarned int64
	AlreadyClosed bool
}

// DisconnectUseCase is the client-initiated teardown. Disconnecting an
// already-closed session is not an error; the result just reports the settled
// amounts again.
type DisconnectUseCase struct {
	userRepo    user.UserRepository
	sessionRepo session.SessionRepository
	closer      *CloseSessionService
	logger      logger.Interface
}

func NewDisconnectUseCase(
	userRepo user.UserRepository,
	sessionRepo session.SessionRepository,
	closer *CloseSessionService,
	logger logger.Interface,
) *DisconnectUseCase {
	return &DisconnectUseCase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		closer:      closer,
		logger:      logger,
	}
}

func (uc *DisconnectUseCase) Execute(ctx context.Context, cmd DisconnectCommand) (*DisconnectResult, error) {
	account, err := uc.userRepo.GetBySID(ctx, cmd.UserSID)
	if err != nil {
		return nil, err
	}

	sess, err := uc.sessionRepo.GetBySID(ctx, cmd.SessionSID)
	if err != nil {
		return nil, err
	}
	if sess.UserID() != account.ID() {
		return nil, errors.NewForbiddenError("session belongs to another user")
	}

	won, err := uc.closer.Close(ctx, sess.ID(), session.CloseClientDisconnect)
	if err != nil {
		return nil, err
	}

	settled, err := uc.sessionRepo.GetByID(ctx, sess.ID())
	if err != nil {
		return nil, err
	}

	return &DisconnectResult{
		SessionSID:    settled.SID(),
		CreditsSpent:  settled.CreditsSpent(),
		CreditsEarned: settled.CreditsEarned(),
		AlreadyClosed: !won,
	}, nil
}
