package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type ListMySessionsQuery struct {
	UserSID string
}

type SessionView struct {
	SessionSID       string
	Status           string
	Protocol         string
	TrafficClass     string
	AssignedIP       string
	ServerEndpoint   string
	BytesTransferred uint64
	CreditsSpent     int64
	CreditsEarned    int64
	CloseReason      string
	StartedAt        string
	EndedAt          string
}

type ListMySessionsResult struct {
	Sessions []SessionView
}

type ListMySessionsUseCase struct {
	userRepo    user.UserRepository
	sessionRepo session.SessionRepository
	logger      logger.Interface
}

func NewListMySessionsUseCase(
	userRepo user.UserRepository,
	sessionRepo session.SessionRepository,
	logger logger.Interface,
) *ListMySessionsUseCase {
	return &ListMySessionsUseCase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

func (uc *ListMySessionsUseCase) Execute(ctx context.Context, query ListMySessionsQuery) (*ListMySessionsResult, error) {
	account, err := uc.userRepo.GetBySID(ctx, query.UserSID)
	if err != nil {
		return nil, err
	}

	sessions, err := uc.sessionRepo.ListActiveByUser(ctx, account.ID())
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, toSessionView(sess))
	}
	return &ListMySessionsResult{Sessions: views}, nil
}

func toSessionView(sess *session.Session) SessionView {
	view := SessionView{
		SessionSID:       sess.SID(),
		Status:           sess.Status().String(),
		Protocol:         sess.Protocol(),
		TrafficClass:     sess.TrafficClass().String(),
		AssignedIP:       sess.AssignedIP(),
		ServerEndpoint:   sess.ServerEndpoint(),
		BytesTransferred: sess.BytesTransferred(),
		CreditsSpent:     sess.CreditsSpent(),
		CreditsEarned:    sess.CreditsEarned(),
		StartedAt:        sess.StartedAt().UTC().Format(time.RFC3339),
	}
	if reason := sess.CloseReason(); reason != nil {
		view.CloseReason = reason.String()
	}
	if ended := sess.EndedAt(); ended != nil {
		view.EndedAt = ended.UTC().Format(time.RFC3339)
	}
	return view
}
