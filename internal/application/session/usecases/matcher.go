package usecases

import (
	"context"
	"sort"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// censoredCountries lists regions where non-stealth tunnel protocols are
// routinely classified and blocked. Clients there are steered toward
// stealth-capable nodes first; plain nodes remain a fallback.
var censoredCountries = map[string]struct{}{
	"CN": {}, "IR": {}, "RU": {}, "BY": {}, "TM": {}, "KP": {},
}

// Default ranking weights, used when the configuration leaves them zero.
const (
	defaultWeightReputation = 0.5
	defaultWeightLatency    = 0.25
	defaultWeightCapacity   = 0.25
	defaultMaxRetries       = 3
)

// Matcher ranks eligible nodes and reserves a capacity slot on the best one.
// Reservation is a conditional update, so two matchers racing for a node's
// last slot resolve at the database: the loser moves down its candidate list.
type Matcher struct {
	nodeRepo         node.NodeRepository
	maxRetries       int
	weightReputation float64
	weightLatency    float64
	weightCapacity   float64
	logger           logger.Interface
}

func NewMatcher(nodeRepo node.NodeRepository, cfg config.MatchConfig, logger logger.Interface) *Matcher {
	m := &Matcher{
		nodeRepo:         nodeRepo,
		maxRetries:       cfg.MaxRetries,
		weightReputation: cfg.WeightReputation,
		weightLatency:    cfg.WeightLatency,
		weightCapacity:   cfg.WeightCapacity,
		logger:           logger,
	}
	if m.maxRetries <= 0 {
		m.maxRetries = defaultMaxRetries
	}
	if m.weightReputation == 0 && m.weightLatency == 0 && m.weightCapacity == 0 {
		m.weightReputation = defaultWeightReputation
		m.weightLatency = defaultWeightLatency
		m.weightCapacity = defaultWeightCapacity
	}
	return m
}

// Score computes the ranking value for a candidate. Reputation dominates;
// latency and spare capacity break ties between nodes of similar standing.
func (m *Matcher) Score(candidate *node.Node) float64 {
	latencyTerm := 1 / (1 + candidate.AvgLatencyMs()/100)
	return m.weightReputation*(candidate.Reputation()/node.MaxReputation) +
		m.weightLatency*latencyTerm +
		m.weightCapacity*candidate.SpareCapacityRatio()
}

// Rank orders candidates best first. For clients in censored countries every
// stealth-capable node outranks every plain one regardless of score.
func (m *Matcher) Rank(candidates []*node.Node, clientCountry string) []*node.Node {
	_, censored := censoredCountries[clientCountry]

	ranked := make([]*node.Node, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if censored {
			si, sj := ranked[i].Protocols().HasStealth(), ranked[j].Protocols().HasStealth()
			if si != sj {
				return si
			}
		}
		return m.Score(ranked[i]) > m.Score(ranked[j])
	})
	return ranked
}

// MatchAndReserve ranks the candidates and walks the list reserving a slot.
// A lost reservation race moves to the next candidate; after maxRetries lost
// races the request fails with a capacity race error rather than scanning the
// whole directory under contention.
func (m *Matcher) MatchAndReserve(ctx context.Context, candidates []*node.Node, clientCountry string) (*node.Node, error) {
	if len(candidates) == 0 {
		return nil, errors.NewNoEligibleNodeError("no node can serve this request right now")
	}

	lostRaces := 0
	for _, candidate := range m.Rank(candidates, clientCountry) {
		reserved, err := m.nodeRepo.ReserveSlot(ctx, candidate.ID())
		if err != nil {
			return nil, err
		}
		if reserved {
			return candidate, nil
		}

		lostRaces++
		m.logger.Debugw("lost reservation race",
			"node_sid", candidate.SID(), "attempt", lostRaces)
		if lostRaces >= m.maxRetries {
			break
		}
	}

	if lostRaces >= m.maxRetries {
		return nil, errors.NewCapacityRaceError("directory is contended, retry shortly")
	}
	return nil, errors.NewNoEligibleNodeError("no node can serve this request right now")
}
