package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type ValidateNodeTokenCommand struct {
	PlainToken string
}

type ValidateNodeTokenResult struct {
	NodeID  uint
	NodeSID string
	Name    string
	OwnerID *uint
}

// ValidateNodeTokenUseCase authenticates an agent by its API token. The
// lookup goes through the token hash; the hash is then re-verified in
// constant time against the presented token.
type ValidateNodeTokenUseCase struct {
	nodeRepo node.NodeRepository
	logger   logger.Interface
}

func NewValidateNodeTokenUseCase(nodeRepo node.NodeRepository, logger logger.Interface) *ValidateNodeTokenUseCase {
	return &ValidateNodeTokenUseCase{
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

func (uc *ValidateNodeTokenUseCase) Execute(ctx context.Context, cmd ValidateNodeTokenCommand) (*ValidateNodeTokenResult, error) {
	if !auth.IsNodeToken(cmd.PlainToken) {
		return nil, errors.NewUnauthorizedError("invalid node token")
	}

	relay, err := uc.nodeRepo.GetByTokenHash(ctx, auth.HashNodeToken(cmd.PlainToken))
	if err != nil {
		uc.logger.Warnw("node token not found")
		return nil, errors.NewUnauthorizedError("invalid node token")
	}

	if !relay.VerifyAPIToken(cmd.PlainToken) {
		uc.logger.Warnw("node token verification failed", "node_sid", relay.SID())
		return nil, errors.NewUnauthorizedError("invalid node token")
	}

	return &ValidateNodeTokenResult{
		NodeID:  relay.ID(),
		NodeSID: relay.SID(),
		Name:    relay.Name(),
		OwnerID: relay.OwnerID(),
	}, nil
}
