package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// ResetDailyQuotaUseCase zeroes every node's daily traffic counter. Runs at
// UTC midnight from the scheduler.
type ResetDailyQuotaUseCase struct {
	nodeRepo node.NodeRepository
	logger   logger.Interface
}

func NewResetDailyQuotaUseCase(nodeRepo node.NodeRepository, logger logger.Interface) *ResetDailyQuotaUseCase {
	return &ResetDailyQuotaUseCase{
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// Execute resets all counters and returns how many rows changed.
func (uc *ResetDailyQuotaUseCase) Execute(ctx context.Context) (int, error) {
	affected, err := uc.nodeRepo.ResetDailyTraffic(ctx)
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
