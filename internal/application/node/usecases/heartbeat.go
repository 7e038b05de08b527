package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type HeartbeatCommand struct {
	NodeID              uint
	ReportedConnections uint
	UptimePercent       float64
	LatencyMs           *float64
	BandwidthMbps       *float64
}

type HeartbeatResult struct {
	NodeSID    string
	Online     bool
	Reputation float64
	Recovered  bool
}

// HeartbeatUseCase applies an authenticated agent heartbeat: refreshes
// liveness, records the agent's diagnostic counters, and nudges the quality
// EMAs. The agent's connection count never overwrites the broker's own
// reservation counter.
type HeartbeatUseCase struct {
	nodeRepo node.NodeRepository
	now      func() time.Time
	logger   logger.Interface
}

func NewHeartbeatUseCase(nodeRepo node.NodeRepository, now func() time.Time, logger logger.Interface) *HeartbeatUseCase {
	if now == nil {
		now = time.Now
	}
	return &HeartbeatUseCase{
		nodeRepo: nodeRepo,
		now:      now,
		logger:   logger,
	}
}

func (uc *HeartbeatUseCase) Execute(ctx context.Context, cmd HeartbeatCommand) (*HeartbeatResult, error) {
	relay, err := uc.nodeRepo.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	if relay.GroupTag() != node.GroupCommunity {
		return nil, errors.NewForbiddenError("public gateways do not heartbeat")
	}

	recovered := relay.Heartbeat(
		cmd.ReportedConnections,
		cmd.UptimePercent,
		cmd.LatencyMs,
		cmd.BandwidthMbps,
		heartbeatRecoverBeta,
		uc.now(),
	)

	if err := uc.nodeRepo.Update(ctx, relay); err != nil {
		return nil, err
	}

	if recovered {
		uc.logger.Infow("node recovered", "node_sid", relay.SID())
	}

	return &HeartbeatResult{
		NodeSID:    relay.SID(),
		Online:     true,
		Reputation: relay.Reputation(),
		Recovered:  recovered,
	}, nil
}
