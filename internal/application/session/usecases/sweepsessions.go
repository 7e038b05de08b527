package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// SweepSessionsUseCase times out MATCHED sessions whose client never brought
// the tunnel up: no traffic report arrived within the grace period. Without
// the sweep such sessions would pin a capacity slot forever.
type SweepSessionsUseCase struct {
	sessionRepo session.SessionRepository
	closer      *CloseSessionService
	gracePeriod time.Duration
	now         func() time.Time
	logger      logger.Interface
}

func NewSweepSessionsUseCase(
	sessionRepo session.SessionRepository,
	closer *CloseSessionService,
	gracePeriod time.Duration,
	now func() time.Time,
	logger logger.Interface,
) *SweepSessionsUseCase {
	if now == nil {
		now = time.Now
	}
	return &SweepSessionsUseCase{
		sessionRepo: sessionRepo,
		closer:      closer,
		gracePeriod: gracePeriod,
		now:         now,
		logger:      logger,
	}
}

// Execute closes every graced-out session and returns how many were closed.
func (uc *SweepSessionsUseCase) Execute(ctx context.Context) (int, error) {
	cutoff := uc.now().Add(-uc.gracePeriod)

	stale, err := uc.sessionRepo.ListMatchedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, sess := range stale {
		won, err := uc.closer.Close(ctx, sess.ID(), session.CloseGraceTimeout)
		if err != nil {
			uc.logger.Errorw("failed to sweep graced-out session",
				"session_sid", sess.SID(), "error", err)
			continue
		}
		if won {
			closed++
		}
	}

	if closed > 0 {
		uc.logger.Infow("grace sweep closed sessions", "count", closed)
	}
	return closed, nil
}
