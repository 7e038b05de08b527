// Package usecases implements the public transparency surface: anonymized
// network stats and session listings anyone can audit without an account.
package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type GroupStats struct {
	Group  string
	Total  int64
	Online int64
}

type NetworkStatsResult struct {
	Nodes                []GroupStats
	ActiveSessions       int64
	BytesRelayed24h      uint64
	SessionsClosed       int64
	CreditsInCirculation int64
}

type GetNetworkStatsUseCase struct {
	nodeRepo    node.NodeRepository
	sessionRepo session.SessionRepository
	ledgerRepo  ledger.TransactionRepository
	logger      logger.Interface
}

func NewGetNetworkStatsUseCase(
	nodeRepo node.NodeRepository,
	sessionRepo session.SessionRepository,
	ledgerRepo ledger.TransactionRepository,
	logger logger.Interface,
) *GetNetworkStatsUseCase {
	return &GetNetworkStatsUseCase{
		nodeRepo:    nodeRepo,
		sessionRepo: sessionRepo,
		ledgerRepo:  ledgerRepo,
		logger:      logger,
	}
}

func (uc *GetNetworkStatsUseCase) Execute(ctx context.Context) (*NetworkStatsResult, error) {
	groups, err := uc.nodeRepo.CountByGroup(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := uc.sessionRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	circulating, err := uc.ledgerRepo.CreditsInCirculation(ctx)
	if err != nil {
		return nil, err
	}

	nodeStats := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		nodeStats = append(nodeStats, GroupStats{
			Group:  g.Group.String(),
			Total:  g.Total,
			Online: g.Online,
		})
	}

	return &NetworkStatsResult{
		Nodes:                nodeStats,
		ActiveSessions:       stats.ActiveSessions,
		BytesRelayed24h:      stats.BytesRelayed24h,
		SessionsClosed:       stats.SessionsClosed,
		CreditsInCirculation: circulating,
	}, nil
}
