package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type ListMyNodesQuery struct {
	OwnerSID string
}

// OwnedNodeView is the operator's view of their own node, including the
// counters hidden from discovery.
type OwnedNodeView struct {
	NodeSID            string
	Name               string
	CountryCode        string
	City               string
	Protocols          []string
	Online             bool
	Disabled           bool
	Reputation         float64
	UptimePercent      float64
	CurrentConnections uint
	MaxConnections     uint
	TrafficUsedToday   uint64
	DailyByteCap       uint64
	LastHeartbeatAt    string
}

type ListMyNodesUseCase struct {
	nodeRepo node.NodeRepository
	userRepo user.UserRepository
	logger   logger.Interface
}

func NewListMyNodesUseCase(nodeRepo node.NodeRepository, userRepo user.UserRepository, logger logger.Interface) *ListMyNodesUseCase {
	return &ListMyNodesUseCase{
		nodeRepo: nodeRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

func (uc *ListMyNodesUseCase) Execute(ctx context.Context, query ListMyNodesQuery) ([]OwnedNodeView, error) {
	owner, err := uc.userRepo.GetBySID(ctx, query.OwnerSID)
	if err != nil {
		return nil, err
	}

	nodes, err := uc.nodeRepo.ListByOwner(ctx, owner.ID())
	if err != nil {
		return nil, err
	}

	views := make([]OwnedNodeView, 0, len(nodes))
	for _, relay := range nodes {
		view := OwnedNodeView{
			NodeSID:            relay.SID(),
			Name:               relay.Name(),
			CountryCode:        relay.CountryCode(),
			City:               relay.City(),
			Protocols:          relay.Protocols().Strings(),
			Online:             relay.Online(),
			Disabled:           relay.Disabled(),
			Reputation:         relay.Reputation(),
			UptimePercent:      relay.UptimePercent(),
			CurrentConnections: relay.CurrentConnections(),
			MaxConnections:     relay.MaxConnections(),
			TrafficUsedToday:   relay.TrafficUsedToday(),
			DailyByteCap:       relay.Policy().DailyByteCap(),
		}
		if hb := relay.LastHeartbeatAt(); hb != nil {
			view.LastHeartbeatAt = hb.Format("2006-01-02T15:04:05Z")
		}
		views = append(views, view)
	}
	return views, nil
}
