package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func reconstructTestNode(t *testing.T, online bool, lastBeat *time.Time) *node.Node {
	t.Helper()
	owner := uint(3)
	now := time.Now().UTC()
	relay, err := node.ReconstructNode(
		5, "n_test1", &owner, "berlin-relay-1", node.HashIdentity("pk"), "DE", "Berlin",
		500, 20, 2, 2,
		node.ProtocolSet{node.ProtocolWireGuard},
		node.NewTrafficPolicy(nil, nil, true, false, 0),
		0, 80, 35, 60, online, lastBeat,
		node.GroupCommunity, "tokenhash", false, 1, now, now,
	)
	require.NoError(t, err)
	return relay
}

func TestHeartbeatUseCase_Execute_RefreshesLiveness(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	beat := time.Now().UTC().Add(-time.Minute)
	relay := reconstructTestNode(t, true, &beat)

	nodeRepo.On("GetByID", mock.Anything, uint(5)).Return(relay, nil)
	nodeRepo.On("Update", mock.Anything, relay).Return(nil)

	frozen := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	uc := NewHeartbeatUseCase(nodeRepo, func() time.Time { return frozen }, logger.NewLogger())

	latency := 42.0
	result, err := uc.Execute(context.Background(), HeartbeatCommand{
		NodeID:              5,
		ReportedConnections: 3,
		UptimePercent:       99,
		LatencyMs:           &latency,
	})

	require.NoError(t, err)
	assert.False(t, result.Recovered, "node was already online")
	assert.Greater(t, result.Reputation, 60.0, "heartbeat pulls reputation up")
	assert.Equal(t, frozen, relay.LastHeartbeatAt().UTC())
	assert.Equal(t, uint(3), relay.ReportedConnections())
	assert.Equal(t, uint(2), relay.CurrentConnections(), "agent report never touches the reservation counter")
}

func TestHeartbeatUseCase_Execute_RecoveryIsGradual(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	relay := reconstructTestNode(t, false, nil)

	nodeRepo.On("GetByID", mock.Anything, uint(5)).Return(relay, nil)
	nodeRepo.On("Update", mock.Anything, relay).Return(nil)

	uc := NewHeartbeatUseCase(nodeRepo, nil, logger.NewLogger())

	result, err := uc.Execute(context.Background(), HeartbeatCommand{NodeID: 5, UptimePercent: 100})

	require.NoError(t, err)
	assert.True(t, result.Recovered)
	// 60 + (100-60)*0.2 = 68: one beat cannot restore a full record.
	assert.InDelta(t, 68.0, result.Reputation, 0.001)
}

func TestSweepLivenessUseCase_Execute(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	closer := newStubSessionCloser()
	closer.count = 2

	beat := time.Now().UTC().Add(-10 * time.Minute)
	stale := reconstructTestNode(t, true, &beat)

	nodeRepo.On("ListStaleOnline", mock.Anything, node.GroupCommunity, mock.Anything).
		Return([]*node.Node{stale}, nil)
	nodeRepo.On("ListOfflineSince", mock.Anything, mock.Anything).
		Return([]*node.Node{}, nil)
	nodeRepo.On("Update", mock.Anything, stale).Return(nil)

	uc := NewSweepLivenessUseCase(nodeRepo, closer, 2*time.Minute, nil, logger.NewLogger())

	demoted, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, demoted)
	assert.False(t, stale.Online())
	assert.InDelta(t, 54.0, stale.Reputation(), 0.001, "one decay step of 10%")
	assert.Contains(t, closer.closed, uint(5))
}
