package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type ReportTrafficCommand struct {
	NodeID          uint
	SessionSID      string
	CumulativeBytes uint64
}

type ReportTrafficResult struct {
	SessionSID    string
	Accepted      bool
	Closed        bool
	CloseReason   string
	CreditsSpent  int64
	CreditsEarned int64
}

// ReportTrafficUseCase ingests an agent's cumulative byte report for one
// session. The report is applied first so settlement always covers the bytes
// the agent declared; only then do the guards run, each able to close the
// session through the one close path.
type ReportTrafficUseCase struct {
	sessionRepo session.SessionRepository
	nodeRepo    node.NodeRepository
	ledgerRepo  ledger.TransactionRepository
	policy      *ledger.SettlementPolicy
	closer      *CloseSessionService
	abuse       AbuseGuard
	accumulator TrafficAccumulator
	now         func() time.Time
	logger      logger.Interface
}

func NewReportTrafficUseCase(
	sessionRepo session.SessionRepository,
	nodeRepo node.NodeRepository,
	ledgerRepo ledger.TransactionRepository,
	policy *ledger.SettlementPolicy,
	closer *CloseSessionService,
	abuse AbuseGuard,
	accumulator TrafficAccumulator,
	now func() time.Time,
	logger logger.Interface,
) *ReportTrafficUseCase {
	if now == nil {
		now = time.Now
	}
	return &ReportTrafficUseCase{
		sessionRepo: sessionRepo,
		nodeRepo:    nodeRepo,
		ledgerRepo:  ledgerRepo,
		policy:      policy,
		closer:      closer,
		abuse:       abuse,
		accumulator: accumulator,
		now:         now,
		logger:      logger,
	}
}

func (uc *ReportTrafficUseCase) Execute(ctx context.Context, cmd ReportTrafficCommand) (*ReportTrafficResult, error) {
	sess, err := uc.sessionRepo.GetBySID(ctx, cmd.SessionSID)
	if err != nil {
		return nil, err
	}
	if sess.NodeID() != cmd.NodeID {
		return nil, errors.NewForbiddenError("session belongs to another node")
	}

	// A report for an already-closed session acks with the close state so the
	// agent tears the tunnel down instead of retrying.
	if !sess.Active() {
		return uc.closedResult(sess), nil
	}

	if cmd.CumulativeBytes < sess.BytesTransferred() {
		return nil, errors.NewValidationError("byte counter regression",
			"cumulative counter went backwards")
	}
	delta := cmd.CumulativeBytes - sess.BytesTransferred()

	relay, err := uc.nodeRepo.GetByID(ctx, sess.NodeID())
	if err != nil {
		return nil, err
	}

	if err := uc.applyReport(ctx, sess, relay, cmd.CumulativeBytes, delta); err != nil {
		return nil, err
	}

	if reason, shouldClose := uc.evaluateGuards(ctx, sess, relay, delta); shouldClose {
		if _, err := uc.closer.Close(ctx, sess.ID(), reason); err != nil {
			return nil, err
		}
		closed, err := uc.sessionRepo.GetByID(ctx, sess.ID())
		if err != nil {
			return nil, err
		}
		return uc.closedResult(closed), nil
	}

	return &ReportTrafficResult{
		SessionSID:    sess.SID(),
		Accepted:      true,
		CreditsSpent:  sess.CreditsSpent(),
		CreditsEarned: sess.CreditsEarned(),
	}, nil
}

// applyReport records the new counter, refreshes the credit projections, and
// feeds the delta into the node traffic accumulator.
func (uc *ReportTrafficUseCase) applyReport(ctx context.Context, sess *session.Session, relay *node.Node, cumulative, delta uint64) error {
	if err := sess.ReportTraffic(cumulative, uc.now()); err != nil {
		return errors.NewValidationError(err.Error())
	}

	spent, err := uc.policy.Spend(cumulative, sess.TrafficClass().String())
	if err != nil {
		return err
	}
	earned := int64(0)
	if sess.NodeOwnerID() != nil {
		earned = uc.policy.Earn(spent, relay.Reputation())
	}
	sess.UpdateProjection(spent, earned)

	if err := uc.sessionRepo.Update(ctx, sess); err != nil {
		return err
	}

	if delta > 0 {
		if err := uc.accumulator.Accumulate(ctx, relay.ID(), delta); err != nil {
			// The report is already durable; accumulator loss only delays the
			// node's quota accounting until the next report.
			uc.logger.Warnw("failed to accumulate node traffic",
				"node_sid", relay.SID(), "bytes", delta, "error", err)
		}
	}
	return nil
}

// evaluateGuards decides whether the session must close after this report.
func (uc *ReportTrafficUseCase) evaluateGuards(ctx context.Context, sess *session.Session, relay *node.Node, delta uint64) (session.CloseReason, bool) {
	if delta > 0 {
		if err := uc.abuse.CheckTraffic(ctx, sess.UserID(), int64(delta)); err != nil {
			uc.logger.Warnw("abuse guard closed session",
				"session_sid", sess.SID(), "error", err)
			return session.CloseAbuse, true
		}
	}

	if cap := relay.Policy().DailyByteCap(); cap > 0 && relay.TrafficUsedToday()+delta >= cap {
		return session.CloseQuotaExceeded, true
	}

	balance, err := uc.ledgerRepo.Balance(ctx, sess.UserID())
	if err != nil {
		uc.logger.Errorw("failed to read balance during report", "error", err)
		return "", false
	}
	// Close as soon as the projected spend would consume the whole balance;
	// waiting for the next report would let the session run unpaid.
	if sess.CreditsSpent() >= balance {
		return session.CloseInsufficientCredits, true
	}

	return "", false
}

func (uc *ReportTrafficUseCase) closedResult(sess *session.Session) *ReportTrafficResult {
	result := &ReportTrafficResult{
		SessionSID:    sess.SID(),
		Closed:        true,
		CreditsSpent:  sess.CreditsSpent(),
		CreditsEarned: sess.CreditsEarned(),
	}
	if reason := sess.CloseReason(); reason != nil {
		result.CloseReason = reason.String()
	}
	return result
}
