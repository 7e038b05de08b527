package usecases

import (
	"context"
	"sort"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type DiscoverNodesQuery struct {
	ClientCountry string
	NodeCountry   *string
	Protocol      *string
	Group         *string
}

// NodeView is the client-facing directory entry. It carries no token hash and
// no raw identity: what the matcher would serve is all a client may see.
type NodeView struct {
	NodeSID       string
	Name          string
	CountryCode   string
	City          string
	Protocols     []string
	BandwidthMbps uint
	Reputation    float64
	UptimePercent float64
	AvgLatencyMs  float64
	Group         string
	SpareSlots    uint
}

// DiscoverNodesUseCase lists the nodes eligible to serve the caller, ranked
// by reputation. The same filter the matcher uses backs the listing, so
// discovery never advertises a node the matcher would refuse.
type DiscoverNodesUseCase struct {
	nodeRepo node.NodeRepository
	logger   logger.Interface
}

func NewDiscoverNodesUseCase(nodeRepo node.NodeRepository, logger logger.Interface) *DiscoverNodesUseCase {
	return &DiscoverNodesUseCase{
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

func (uc *DiscoverNodesUseCase) Execute(ctx context.Context, query DiscoverNodesQuery) ([]NodeView, error) {
	filter := node.EligibilityFilter{}

	if query.ClientCountry != "" {
		if !utils.IsValidCountryCode(query.ClientCountry) {
			return nil, errors.NewValidationError("client country must be ISO 3166-1 alpha-2")
		}
		filter.ClientCountry = utils.NormalizeCountryCode(query.ClientCountry)
	}
	if query.NodeCountry != nil {
		if !utils.IsValidCountryCode(*query.NodeCountry) {
			return nil, errors.NewValidationError("node country must be ISO 3166-1 alpha-2")
		}
		code := utils.NormalizeCountryCode(*query.NodeCountry)
		filter.NodeCountry = &code
	}
	if query.Protocol != nil {
		p, err := node.ParseProtocol(*query.Protocol)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		filter.Protocol = &p
	}
	if query.Group != nil {
		g, err := node.ParseGroup(*query.Group)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		filter.Group = &g
	}

	candidates, err := uc.nodeRepo.ListEligible(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Reputation() > candidates[j].Reputation()
	})

	views := make([]NodeView, 0, len(candidates))
	for _, relay := range candidates {
		views = append(views, NodeView{
			NodeSID:       relay.SID(),
			Name:          relay.Name(),
			CountryCode:   relay.CountryCode(),
			City:          relay.City(),
			Protocols:     relay.Protocols().Strings(),
			BandwidthMbps: relay.BandwidthMbps(),
			Reputation:    relay.Reputation(),
			UptimePercent: relay.UptimePercent(),
			AvgLatencyMs:  relay.AvgLatencyMs(),
			Group:         relay.GroupTag().String(),
			SpareSlots:    relay.MaxConnections() - relay.CurrentConnections(),
		})
	}
	return views, nil
}
