package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// offlineDecayHorizon bounds how long a silent node keeps decaying. Nodes
// unseen beyond the horizon have already decayed to the floor; skipping them
// keeps the sweep's working set small.
const offlineDecayHorizon = 7 * 24 * time.Hour

// SweepLivenessUseCase is the periodic liveness job for community nodes:
// nodes whose heartbeats stopped arriving within the liveness window are
// marked offline, their reputation decays one step, and their open sessions
// are force-closed. Already-offline nodes seen recently keep decaying each
// pass while they stay silent.
type SweepLivenessUseCase struct {
	nodeRepo       node.NodeRepository
	sessions       SessionCloser
	livenessWindow time.Duration
	now            func() time.Time
	logger         logger.Interface
}

func NewSweepLivenessUseCase(
	nodeRepo node.NodeRepository,
	sessions SessionCloser,
	livenessWindow time.Duration,
	now func() time.Time,
	logger logger.Interface,
) *SweepLivenessUseCase {
	if now == nil {
		now = time.Now
	}
	return &SweepLivenessUseCase{
		nodeRepo:       nodeRepo,
		sessions:       sessions,
		livenessWindow: livenessWindow,
		now:            now,
		logger:         logger,
	}
}

// Execute runs one sweep pass and returns how many nodes were demoted.
func (uc *SweepLivenessUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now().UTC()

	stale, err := uc.nodeRepo.ListStaleOnline(ctx, node.GroupCommunity, now.Add(-uc.livenessWindow))
	if err != nil {
		return 0, err
	}

	demoted := 0
	for _, relay := range stale {
		relay.MarkOffline(offlineDecayAlpha)
		if err := uc.nodeRepo.Update(ctx, relay); err != nil {
			uc.logger.Errorw("failed to demote stale node", "node_sid", relay.SID(), "error", err)
			continue
		}
		demoted++

		closed, err := uc.sessions.CloseSessionsForNode(ctx, relay.ID(), session.CloseNodeOffline)
		if err != nil {
			uc.logger.Errorw("failed to close sessions on stale node",
				"node_sid", relay.SID(), "error", err)
			continue
		}
		if closed > 0 {
			uc.logger.Infow("closed sessions on unresponsive node",
				"node_sid", relay.SID(), "count", closed)
		}
	}

	// Continued decay for nodes that stay silent.
	silent, err := uc.nodeRepo.ListOfflineSince(ctx, now.Add(-offlineDecayHorizon))
	if err != nil {
		return demoted, err
	}
	for _, relay := range silent {
		if relay.Reputation() == 0 && relay.UptimePercent() == 0 {
			continue
		}
		relay.DecayReputation(offlineDecayAlpha)
		if err := uc.nodeRepo.Update(ctx, relay); err != nil {
			uc.logger.Errorw("failed to decay silent node", "node_sid", relay.SID(), "error", err)
		}
	}

	return demoted, nil
}
