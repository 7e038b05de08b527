package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type SetNodeDisabledCommand struct {
	NodeSID  string
	Disabled bool
}

type SetNodeDisabledResult struct {
	NodeSID        string
	Disabled       bool
	SessionsClosed int
}

// SetNodeDisabledUseCase is the operator kill switch. Disabling blocks new
// matches and force-closes whatever is running on the node.
type SetNodeDisabledUseCase struct {
	nodeRepo node.NodeRepository
	sessions SessionCloser
	logger   logger.Interface
}

func NewSetNodeDisabledUseCase(nodeRepo node.NodeRepository, sessions SessionCloser, logger logger.Interface) *SetNodeDisabledUseCase {
	return &SetNodeDisabledUseCase{
		nodeRepo: nodeRepo,
		sessions: sessions,
		logger:   logger,
	}
}

func (uc *SetNodeDisabledUseCase) Execute(ctx context.Context, cmd SetNodeDisabledCommand) (*SetNodeDisabledResult, error) {
	relay, err := uc.nodeRepo.GetBySID(ctx, cmd.NodeSID)
	if err != nil {
		return nil, err
	}

	if cmd.Disabled {
		relay.Disable()
	} else {
		relay.Enable()
	}

	if err := uc.nodeRepo.Update(ctx, relay); err != nil {
		return nil, err
	}

	closed := 0
	if cmd.Disabled {
		closed, err = uc.sessions.CloseSessionsForNode(ctx, relay.ID(), session.CloseOperator)
		if err != nil {
			// The node is already out of matching; the sweep will finish the
			// teardown if this pass could not.
			uc.logger.Errorw("failed to close sessions on disabled node",
				"node_sid", relay.SID(), "error", err)
		}
	}

	uc.logger.Infow("node disabled flag changed",
		"node_sid", relay.SID(), "disabled", cmd.Disabled, "sessions_closed", closed)

	return &SetNodeDisabledResult{
		NodeSID:        relay.SID(),
		Disabled:       relay.Disabled(),
		SessionsClosed: closed,
	}, nil
}
