package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// riskScoreStep is added to a user's risk score on every ban.
const riskScoreStep = 25

// Store is the slice of the abuse cache the guard needs.
type Store interface {
	RecordBytes(ctx context.Context, userID uint, bytes uint64) error
	RecordConnect(ctx context.Context, userID uint) error
	BytesInWindow(ctx context.Context, userID uint) (uint64, error)
	ConnectsInWindow(ctx context.Context, userID uint) (int64, error)
	Ban(ctx context.Context, userID uint, duration time.Duration, reason string) error
	IsBanned(ctx context.Context, userID uint) (bool, string, error)
}

// AlertMailer is the slice of the operator mailer the guard needs.
type AlertMailer interface {
	SendAbuseAlert(userSID string, riskScore int, reason string) error
}

// SessionCloser force-closes a user's open sessions when a ban lands.
type SessionCloser interface {
	CloseSessionsForUser(ctx context.Context, userID uint, reason session.CloseReason) (int, error)
}

// Guard enforces the per-user rate windows. A breached window bans the user
// for the configured duration, posts a PENALTY ledger entry, force-closes the
// user's open sessions, bumps their risk score, and alerts the operator.
type Guard struct {
	store      Store
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	sessions   SessionCloser
	mailer     AlertMailer
	cfg        config.AbuseConfig
	logger     logger.Interface
}

func NewGuard(
	store Store,
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	sessions SessionCloser,
	mailer AlertMailer,
	cfg config.AbuseConfig,
	logger logger.Interface,
) *Guard {
	return &Guard{
		store:      store,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		sessions:   sessions,
		mailer:     mailer,
		cfg:        cfg,
		logger:     logger,
	}
}

// CheckConnect admits or rejects a new session request.
func (g *Guard) CheckConnect(ctx context.Context, userID uint) error {
	if err := g.rejectIfBanned(ctx, userID); err != nil {
		return err
	}

	if err := g.store.RecordConnect(ctx, userID); err != nil {
		// A broken counter must not take connects down with it.
		g.logger.Warnw("abuse store unavailable, skipping connect check",
			"user_id", userID, "error", err)
		return nil
	}

	if g.cfg.MaxConnectsPerMinute <= 0 {
		return nil
	}
	connects, err := g.store.ConnectsInWindow(ctx, userID)
	if err != nil {
		g.logger.Warnw("failed to read connect window", "user_id", userID, "error", err)
		return nil
	}
	if connects > g.cfg.MaxConnectsPerMinute {
		return g.ban(ctx, userID, fmt.Sprintf("connect flood: %d connects/min", connects))
	}
	return nil
}

// CheckTraffic admits or rejects a traffic report's byte delta.
func (g *Guard) CheckTraffic(ctx context.Context, userID uint, deltaBytes int64) error {
	if err := g.rejectIfBanned(ctx, userID); err != nil {
		return err
	}
	if deltaBytes <= 0 {
		return nil
	}

	if err := g.store.RecordBytes(ctx, userID, uint64(deltaBytes)); err != nil {
		g.logger.Warnw("abuse store unavailable, skipping traffic check",
			"user_id", userID, "error", err)
		return nil
	}

	if g.cfg.MaxBytesPerMinute <= 0 {
		return nil
	}
	bytes, err := g.store.BytesInWindow(ctx, userID)
	if err != nil {
		g.logger.Warnw("failed to read traffic window", "user_id", userID, "error", err)
		return nil
	}
	if bytes > uint64(g.cfg.MaxBytesPerMinute) {
		return g.ban(ctx, userID, fmt.Sprintf("traffic flood: %d bytes/min", bytes))
	}
	return nil
}

func (g *Guard) rejectIfBanned(ctx context.Context, userID uint) error {
	banned, reason, err := g.store.IsBanned(ctx, userID)
	if err != nil {
		g.logger.Warnw("failed to read ban flag", "user_id", userID, "error", err)
		return nil
	}
	if banned {
		return errors.NewForbiddenError(fmt.Sprintf("temporarily banned: %s", reason))
	}
	return nil
}

// ban flags the user, posts the PENALTY entry, force-closes their open
// sessions, escalates their risk score, and alerts the operator. The
// rejection is returned even when the bookkeeping partially fails.
func (g *Guard) ban(ctx context.Context, userID uint, reason string) error {
	if err := g.store.Ban(ctx, userID, g.cfg.BanDuration, reason); err != nil {
		g.logger.Errorw("failed to set ban flag", "user_id", userID, "error", err)
	}

	g.recordPenalty(ctx, userID, reason)
	g.closeSessions(ctx, userID)

	account, err := g.userRepo.GetByID(ctx, userID)
	if err != nil {
		g.logger.Errorw("failed to load user for risk escalation",
			"user_id", userID, "error", err)
		return errors.NewForbiddenError(fmt.Sprintf("temporarily banned: %s", reason))
	}

	account.RecordRiskScore(account.RiskScore() + riskScoreStep)
	if err := g.userRepo.Update(ctx, account); err != nil {
		g.logger.Errorw("failed to persist risk score", "user_sid", account.SID(), "error", err)
	}

	if g.mailer != nil {
		if err := g.mailer.SendAbuseAlert(account.SID(), account.RiskScore(), reason); err != nil {
			g.logger.Errorw("failed to send abuse alert", "user_sid", account.SID(), "error", err)
		}
	}

	return errors.NewForbiddenError(fmt.Sprintf("temporarily banned: %s", reason))
}

// recordPenalty marks the ban in the ledger. The entry is informational, so
// the amount is zero; the audit trail, not the balance, is the point.
func (g *Guard) recordPenalty(ctx context.Context, userID uint, reason string) {
	entry, err := ledger.NewTransaction(userID, nil, 0, ledger.TransactionPenalty,
		fmt.Sprintf("abuse ban: %s", reason))
	if err != nil {
		g.logger.Errorw("failed to build penalty entry", "user_id", userID, "error", err)
		return
	}
	if err := g.ledgerRepo.Record(ctx, entry); err != nil {
		g.logger.Errorw("failed to record penalty entry", "user_id", userID, "error", err)
	}
}

// closeSessions tears down every open session the banned user holds. Each
// close goes through the regular close path, so the bytes already reported
// still settle.
func (g *Guard) closeSessions(ctx context.Context, userID uint) {
	closed, err := g.sessions.CloseSessionsForUser(ctx, userID, session.CloseAbuse)
	if err != nil {
		g.logger.Errorw("failed to close sessions of banned user", "user_id", userID, "error", err)
		return
	}
	if closed > 0 {
		g.logger.Infow("closed sessions of banned user", "user_id", userID, "count", closed)
	}
}
