package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type OfflineNodeCommand struct {
	NodeID uint
}

type OfflineNodeResult struct {
	NodeSID        string
	SessionsClosed int
}

// OfflineNodeUseCase handles a graceful agent shutdown: the node goes offline
// without reputation penalty beyond one decay step, and every session it was
// hosting is closed and settled for the traffic reported so far.
type OfflineNodeUseCase struct {
	nodeRepo node.NodeRepository
	sessions SessionCloser
	logger   logger.Interface
}

func NewOfflineNodeUseCase(nodeRepo node.NodeRepository, sessions SessionCloser, logger logger.Interface) *OfflineNodeUseCase {
	return &OfflineNodeUseCase{
		nodeRepo: nodeRepo,
		sessions: sessions,
		logger:   logger,
	}
}

func (uc *OfflineNodeUseCase) Execute(ctx context.Context, cmd OfflineNodeCommand) (*OfflineNodeResult, error) {
	relay, err := uc.nodeRepo.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return nil, err
	}

	relay.MarkOffline(offlineDecayAlpha)
	if err := uc.nodeRepo.Update(ctx, relay); err != nil {
		return nil, err
	}

	closed, err := uc.sessions.CloseSessionsForNode(ctx, relay.ID(), session.CloseNodeOffline)
	if err != nil {
		// The node is already offline; session teardown failures are logged
		// and left to the grace sweep.
		uc.logger.Errorw("failed to close sessions for offline node",
			"node_sid", relay.SID(), "error", err)
	}

	uc.logger.Infow("node went offline gracefully",
		"node_sid", relay.SID(), "sessions_closed", closed)

	return &OfflineNodeResult{
		NodeSID:        relay.SID(),
		SessionsClosed: closed,
	}, nil
}
