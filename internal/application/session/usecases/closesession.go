package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// CloseSessionService drives the one close path every teardown trigger goes
// through: client disconnect, agent shutdown, liveness sweep, grace sweep,
// quota, credits, abuse. The conditional CLOSING flip picks exactly one
// winner; only the winner settles, so the ledger sees one SPENT and at most
// one EARNED entry per session no matter how many triggers fire.
type CloseSessionService struct {
	sessionRepo session.SessionRepository
	nodeRepo    node.NodeRepository
	ledgerRepo  ledger.TransactionRepository
	policy      *ledger.SettlementPolicy
	txManager   TransactionManager
	now         func() time.Time
	logger      logger.Interface
}

func NewCloseSessionService(
	sessionRepo session.SessionRepository,
	nodeRepo node.NodeRepository,
	ledgerRepo ledger.TransactionRepository,
	policy *ledger.SettlementPolicy,
	txManager TransactionManager,
	now func() time.Time,
	logger logger.Interface,
) *CloseSessionService {
	if now == nil {
		now = time.Now
	}
	return &CloseSessionService{
		sessionRepo: sessionRepo,
		nodeRepo:    nodeRepo,
		ledgerRepo:  ledgerRepo,
		policy:      policy,
		txManager:   txManager,
		now:         now,
		logger:      logger,
	}
}

// Close runs the exactly-once close flip and, on winning it, settles and
// finalizes the session. Returns false when another caller already won;
// repeated close signals are harmless no-ops.
func (s *CloseSessionService) Close(ctx context.Context, sessionID uint, reason session.CloseReason) (bool, error) {
	won, err := s.sessionRepo.BeginClose(ctx, sessionID, reason)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return true, err
	}

	err = s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		return s.settle(txCtx, sess)
	})
	if err != nil {
		s.logger.Errorw("session settlement failed",
			"session_sid", sess.SID(), "reason", reason, "error", err)
		return true, err
	}

	s.logger.Infow("session closed",
		"session_sid", sess.SID(),
		"reason", reason,
		"bytes", sess.BytesTransferred(),
		"spent", sess.CreditsSpent(),
		"earned", sess.CreditsEarned(),
	)
	return true, nil
}

// settle posts the SPENT/EARNED pair, finalizes the session, and returns the
// node's capacity slot, all inside the caller's transaction.
func (s *CloseSessionService) settle(ctx context.Context, sess *session.Session) error {
	spent, earned, err := s.settleLedger(ctx, sess)
	if err != nil {
		return err
	}

	if err := sess.CompleteClose(spent, earned, s.now()); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	if err := s.sessionRepo.Update(ctx, sess); err != nil {
		return err
	}

	if sess.NodeID() != 0 {
		if err := s.nodeRepo.ReleaseSlot(ctx, sess.NodeID()); err != nil {
			return err
		}
	}
	return nil
}

func (s *CloseSessionService) settleLedger(ctx context.Context, sess *session.Session) (spent, earned int64, err error) {
	if sess.NodeID() == 0 || sess.BytesTransferred() == 0 {
		return 0, 0, nil
	}

	spent, err = s.policy.Spend(sess.BytesTransferred(), sess.TrafficClass().String())
	if err != nil {
		return 0, 0, err
	}
	if spent == 0 {
		return 0, 0, nil
	}

	spent, err = s.recordSpent(ctx, sess, spent)
	if err != nil {
		return 0, 0, err
	}

	owner := sess.NodeOwnerID()
	if owner == nil || spent == 0 {
		return spent, 0, nil
	}

	relay, err := s.nodeRepo.GetByID(ctx, sess.NodeID())
	if err != nil {
		return 0, 0, err
	}
	earned = s.policy.Earn(spent, relay.Reputation())
	if earned == 0 {
		return spent, 0, nil
	}

	sessionID := sess.ID()
	entry, err := ledger.NewTransaction(*owner, &sessionID, earned, ledger.TransactionEarned,
		fmt.Sprintf("relay earnings for session %s", sess.SID()))
	if err != nil {
		return 0, 0, err
	}
	if err := s.ledgerRepo.Record(ctx, entry); err != nil {
		if errors.IsConflictError(err) {
			// Settlement already posted by an earlier, interrupted attempt.
			return spent, earned, nil
		}
		return 0, 0, err
	}
	return spent, earned, nil
}

// recordSpent posts the client's SPENT entry. When the full amount would
// overdraw, the remaining balance is drained instead: the client pays what
// they have and the session still closes cleanly.
func (s *CloseSessionService) recordSpent(ctx context.Context, sess *session.Session, amount int64) (int64, error) {
	sessionID := sess.ID()
	desc := fmt.Sprintf("relay usage for session %s", sess.SID())

	entry, err := ledger.NewTransaction(sess.UserID(), &sessionID, -amount, ledger.TransactionSpent, desc)
	if err != nil {
		return 0, err
	}
	err = s.ledgerRepo.Record(ctx, entry)
	if err == nil {
		return amount, nil
	}
	if errors.IsConflictError(err) {
		return amount, nil
	}
	if !errors.IsInsufficientCreditsError(err) {
		return 0, err
	}

	balance, err := s.ledgerRepo.Balance(ctx, sess.UserID())
	if err != nil {
		return 0, err
	}
	if balance <= 0 {
		return 0, nil
	}

	drained, err := ledger.NewTransaction(sess.UserID(), &sessionID, -balance, ledger.TransactionSpent, desc)
	if err != nil {
		return 0, err
	}
	if err := s.ledgerRepo.Record(ctx, drained); err != nil {
		if errors.IsConflictError(err) {
			return balance, nil
		}
		return 0, err
	}

	s.logger.Warnw("session drained remaining balance",
		"session_sid", sess.SID(), "billed", amount, "drained", balance)
	return balance, nil
}

// CloseSessionsForUser closes every open session a user holds with the given
// reason and returns how many this caller actually closed. The abuse guard
// uses it to tear down a banned user's tunnels.
func (s *CloseSessionService) CloseSessionsForUser(ctx context.Context, userID uint, reason session.CloseReason) (int, error) {
	open, err := s.sessionRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, sess := range open {
		won, err := s.Close(ctx, sess.ID(), reason)
		if err != nil {
			s.logger.Errorw("failed to close session of user",
				"session_sid", sess.SID(), "user_id", userID, "error", err)
			continue
		}
		if won {
			closed++
		}
	}
	return closed, nil
}

// CloseSessionsForNode closes every open session on a node with the given
// reason and returns how many this caller actually closed.
func (s *CloseSessionService) CloseSessionsForNode(ctx context.Context, nodeID uint, reason session.CloseReason) (int, error) {
	open, err := s.sessionRepo.ListActiveByNode(ctx, nodeID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, sess := range open {
		won, err := s.Close(ctx, sess.ID(), reason)
		if err != nil {
			s.logger.Errorw("failed to close session on node",
				"session_sid", sess.SID(), "node_id", nodeID, "error", err)
			continue
		}
		if won {
			closed++
		}
	}
	return closed, nil
}
